package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ridethebus/bus-server/internal/adapters/signal"
	"github.com/ridethebus/bus-server/internal/config"
)

// ClientTokenMiddleware mints the durable per-user token on first
// contact and keeps it in the signed session cookie. The websocket
// handlers fall back to it when a payload carries no userId, which is
// what makes reconnection work for browser clients.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get("ct").(string)
		if token == "" {
			token = uuid.NewString()
			sess.Set("ct", token)
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("BusSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Ride the Bus server is running on port %d", cfg.Port)
	})

	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleWS(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
