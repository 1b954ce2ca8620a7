package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handlers that admit a packet client file its id and session under these
// gin context keys.
const (
	ContextUser          = "user"
	ContextClientSession = "client_session"
)

// unmatchedRoute labels requests no route matched.
const unmatchedRoute = "unmatched"

// RequestLogger counts every admin request by route pattern and logs it.
// Websocket upgrades log at info together with the admitted client.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := c.IsWebsocket()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		RecordHTTPRequest(c.Request.Method, route, status)

		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case upgrade:
			event = logger.Info()
		default:
			event = logger.Debug()
		}

		event = event.
			Str("route", route).
			Int("status", status).
			Dur("took", time.Since(start)).
			Bool("upgrade", upgrade)
		if id, ok := c.Get(ContextUser); ok {
			if user, ok := id.(uint16); ok {
				event = event.Uint16("user", user)
			}
		}
		if session := c.GetString(ContextClientSession); session != "" {
			event = event.Str("client_session", session)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("admin request")
	}
}
