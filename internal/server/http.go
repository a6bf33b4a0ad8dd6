package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	sessionhandler "session-registry/backend/internal/session/handler"
	sessionservice "session-registry/backend/internal/session/service"
)

// Pinger is the readiness probe for the persistence backend (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds the dependencies the HTTP router is wired with.
type Deps struct {
	// Session is the session service backing all session routes.
	Session *sessionservice.Service
	// HealthPinger is used by /health for readiness. If nil, the backend
	// ping is skipped (in-memory store).
	HealthPinger Pinger
}

// NewRouter builds the gin engine with all routes registered.
//
// Route → handler mapping:
//   - /welcome /login /status /update /logout
//     /allSessions /allCurrentSessions /deleteAllSessions → internal/session/handler
//   - /health → readiness probe (backend ping when configured)
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	sessionhandler.NewHandler(deps.Session).RegisterRoutes(r)

	r.GET("/health", func(c *gin.Context) {
		if deps.HealthPinger != nil {
			if err := deps.HealthPinger.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
