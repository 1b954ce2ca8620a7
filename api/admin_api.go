package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/saeidalz13/battleship-server/db/sqlc"
	"github.com/saeidalz13/battleship-server/internal/config"
	"github.com/saeidalz13/battleship-server/internal/observability"
	mb "github.com/saeidalz13/battleship-server/models/battleship"
	mc "github.com/saeidalz13/battleship-server/models/connection"
)

type RespHealth struct {
	Status   string `json:"status"`
	Stage    string `json:"stage"`
	Sessions int    `json:"sessions"`
	Games    int    `json:"games"`
}

type RespAnalytics struct {
	ServerIp       string `json:"server_ip"`
	GamesCreated   int64  `json:"games_created"`
	GamesFinished  int64  `json:"games_finished"`
	GamesForfeited int64  `json:"games_forfeited"`
}

type RespSessions struct {
	Sessions  []mc.SessionInfo `json:"sessions"`
	Games     []mb.GameSummary `json:"games"`
	Analytics *RespAnalytics   `json:"analytics,omitempty"`
}

// Router serves the admin surface and the websocket gateway.
func (s *Server) Router() *gin.Engine {
	if s.stage == config.StageProd {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), observability.RequestLogger(observability.Channel(observability.ChannelHTTP)))

	router.GET("/healthz", s.HandleHealth)
	router.GET("/sessions", s.HandleSessions)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/battleship", s.HandleWs)
	return router
}

func (s *Server) HandleHealth(ctx *gin.Context) {
	resp := RespHealth{
		Status:   "ok",
		Stage:    s.stage,
		Sessions: s.SessionManager.Count(),
		Games:    s.GameManager.Count(),
	}
	if s.closed.Load() {
		resp.Status = "shutting_down"
		ctx.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) HandleSessions(ctx *gin.Context) {
	resp := RespSessions{
		Sessions: s.SessionManager.Sessions(),
		Games:    s.GameManager.Snapshot(),
	}

	if s.DbManager.Analytics.Enabled() {
		qctx, cancel := context.WithTimeout(ctx.Request.Context(), sqlc.QuerierCtxTimeout)
		defer cancel()

		analytics, err := s.DbManager.Analytics.GetServerAnalytics(qctx)
		if err != nil {
			s.errLogger.Error().Err(err).Msg("failed to read analytics")
		} else {
			resp.Analytics = &RespAnalytics{
				ServerIp:       analytics.ServerIp.IPNet.IP.String(),
				GamesCreated:   analytics.GamesCreated,
				GamesFinished:  analytics.GamesFinished,
				GamesForfeited: analytics.GamesForfeited,
			}
		}
	}
	ctx.JSON(http.StatusOK, resp)
}
