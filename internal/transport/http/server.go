package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pairlink/pairlink-server/internal/config"
	"github.com/pairlink/pairlink-server/internal/session"
	"github.com/pairlink/pairlink-server/internal/watchdog"
)

// NewServer builds the HTTP surface of one session process: health,
// the client bootstrap document, and the WebSocket endpoint.
func NewServer(rt *session.Runtime, mon *watchdog.Monitor, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/healthz", healthHandler)
	router.GET("/session.json", sessionInfoHandler(cfg))
	router.GET("/ws", gin.WrapH(NewWSHandler(rt, mon, logger)))

	return &stdhttp.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

// SessionInfo is the bootstrap document the client fetches before
// opening the socket.
type SessionInfo struct {
	AppID     string `json:"appId"`
	SessionID string `json:"sessionId"`
	WSURL     string `json:"wsUrl"`
	LobbyURL  string `json:"lobbyUrl"`
}

func sessionInfoHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme := "ws"
		if c.Request.TLS != nil {
			scheme = "wss"
		}
		c.JSON(stdhttp.StatusOK, SessionInfo{
			AppID:     cfg.AppID,
			SessionID: cfg.SessionID,
			WSURL:     fmt.Sprintf("%s://%s/ws", scheme, c.Request.Host),
			LobbyURL:  cfg.LobbyURL,
		})
	}
}
