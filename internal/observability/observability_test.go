package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{level: "debug", want: zerolog.DebugLevel},
		{level: " WARN ", want: zerolog.WarnLevel},
		{level: "", want: zerolog.InfoLevel},
		{level: "loud", want: zerolog.InfoLevel},
	}

	for _, test := range tests {
		t.Run(test.level, func(t *testing.T) {
			logger := InitLogger("test", "prod", test.level)
			assert.Equal(t, test.want, logger.GetLevel())
		})
	}
}

func TestSessionMetrics(t *testing.T) {
	before := testutil.ToFloat64(activeSessions)
	finished := testutil.ToFloat64(gamesFinished.WithLabelValues("forfeit"))

	SessionStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(activeSessions))

	SessionEnded("forfeit", 3*time.Second)
	assert.Equal(t, before, testutil.ToFloat64(activeSessions))
	assert.Equal(t, finished+1, testutil.ToFloat64(gamesFinished.WithLabelValues("forfeit")))
}

func TestRequestLoggerRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger(zerolog.Nop()))
	router.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	counter := httpRequests.WithLabelValues(http.MethodGet, "/things/:id", "418")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/42", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter), "the route pattern is the label, not the raw path")
}

func TestRequestLoggerAddsAdmittedClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	router := gin.New()
	router.Use(RequestLogger(zerolog.New(&buf)))
	router.GET("/battleship", func(c *gin.Context) {
		c.Set(ContextUser, uint16(7))
		c.Set(ContextClientSession, "abc")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/battleship", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	router.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "/battleship", entry["route"])
	assert.Equal(t, float64(7), entry["user"])
	assert.Equal(t, "abc", entry["client_session"])
	assert.Equal(t, true, entry["upgrade"])
}

func TestRequestLoggerUnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger(zerolog.Nop()))

	counter := httpRequests.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
