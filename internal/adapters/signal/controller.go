package signal

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ridethebus/bus-server/internal/config"
	"github.com/ridethebus/bus-server/internal/core"
	"github.com/ridethebus/bus-server/internal/domain"
)

// Controller owns the websocket endpoint: upgrade, connection identity,
// pumps, and event dispatch into the session state machine.
type Controller struct {
	cfg      *config.Config
	session  *core.Session
	hub      *Hub
	limiter  *AttemptLimiter
	upgrader websocket.Upgrader
}

func NewController(cfg *config.Config, session *core.Session, hub *Hub) *Controller {
	return &Controller{
		cfg:     cfg,
		session: session,
		hub:     hub,
		limiter: NewAttemptLimiter(cfg.AttemptLimit, cfg.AttemptWindow),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.AllowedOrigins),
		},
	}
}

// originChecker accepts requests with no Origin header (non-browser
// clients) and browsers on the allow-list; everything else is refused
// at the handshake.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// HandleWS upgrades the connection and starts its pumps. Each socket
// gets a fresh transient ConnectionID; the durable identity is the
// client token minted by the router middleware.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	clientToken := c.GetString("client_token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.cfg.ReadLimit)

	connID := domain.ConnectionID(uuid.NewString())
	conn := newWsConn(ws)
	ctl.hub.Register(connID, conn)
	log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, connID, clientToken, conn)
}
