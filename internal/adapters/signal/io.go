package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ridethebus/bus-server/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, connID domain.ConnectionID, clientToken string, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
		cancel()
		// The transport is gone: flip the member to disconnected in
		// every room that tracks this connection, then forget it.
		if err := ctl.session.Disconnect(context.Background(), connID); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("disconnect handling failed")
		}
		ctl.hub.Drop(connID)
		ctl.limiter.Forget(connID)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("readPump read error")
				return
			}
			ctl.dispatch(ctx, connID, clientToken, c, data)
		}
	}
}
