// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/manhunt/internal/channel"
	"github.com/jason-s-yu/manhunt/internal/game"
	"github.com/jason-s-yu/manhunt/internal/middleware"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// GameWSHandler upgrades a player's request to the session's realtime channel.
// The caller must already be on the roster. A second connection from the same player
// replaces the first, which is closed with ReplacedConnectionError.
func GameWSHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := gs.authenticate(w, r)
		if !ok {
			return
		}
		g, ok := gs.loadGame(w, r)
		if !ok {
			return
		}
		if !g.IsMember(user.ID) {
			gs.writeError(w, r, fmt.Errorf("%w: join the game before connecting", game.ErrNotInGame))
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   channel.Subprotocols(),
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			gs.Logger.WithError(err).WithField("gameId", g.ID).Warn("websocket accept failed")
			return
		}
		defer c.CloseNow()

		codec, err := channel.CodecFor(c.Subprotocol())
		if err != nil {
			c.Close(BadSubprotocolError, err.Error())
			return
		}

		middleware.LogWebSocketConnect(gs.Logger, r.RemoteAddr, r.URL.Path)
		log := gs.Logger.WithFields(logrus.Fields{"gameId": g.ID, "playerId": user.ID, "codec": codec.Name()})

		conn := channel.NewConn(g.ID, user.ID, codec, gs.WS.SendBuffer, gs.Logger)
		if old := gs.Layer.Join(g.ID, conn); old != nil {
			log.Info("replacing existing connection")
			old.Evict()
		}
		log.WithField("connections", len(gs.Layer.Members(g.ID))).Info("player connected")
		defer func() {
			gs.Layer.Leave(g.ID, conn)
			conn.Close()
		}()

		conn.Send(game.GameEvent{Type: game.EventGameUpdate, Data: snapshotPtr(g.Snapshot())})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			writePump(ctx, c, conn, log)
			cancel()
		}()

		err = readPump(ctx, c, conn, g, user, gs.WS, log)
		middleware.LogWebSocketDisconnect(gs.Logger, r.RemoteAddr, r.URL.Path, err)
	}
}

func snapshotPtr(s game.Snapshot) *game.Snapshot {
	return &s
}

// writePump is the single writer of c. It drains the connection's queue and keeps the
// socket alive with pings until ctx ends or the connection is closed.
func writePump(ctx context.Context, c *websocket.Conn, conn *channel.Conn, log *logrus.Entry) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			if conn.Evicted() {
				c.Close(ReplacedConnectionError, "replaced by a newer connection")
			} else {
				c.Close(websocket.StatusGoingAway, "game closed")
			}
			return
		case f := <-conn.Out():
			typ := websocket.MessageText
			if f.Binary {
				typ = websocket.MessageBinary
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(wctx, typ, f.Data)
			cancel()
			if err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				log.WithError(err).Debug("websocket ping failed")
				return
			}
		}
	}
}

// readPump decodes inbound commands and applies them to the session until the client
// goes away. Failed commands are answered with an error event on the same connection.
func readPump(ctx context.Context, c *websocket.Conn, conn *channel.Conn, g *game.GameSession, user models.User, opts WSOptions, log *logrus.Entry) error {
	limiter := rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RateBurst)
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !limiter.Allow() {
			conn.Send(game.GameEvent{Type: game.EventError, Code: "rate_limited", Error: "too many messages"})
			continue
		}

		cmd, err := channel.DecodeCommand(conn.Codec, data)
		if err != nil {
			log.WithError(err).Debug("rejected inbound message")
			conn.Send(game.GameEvent{Type: game.EventError, Code: "bad_request", Error: err.Error()})
			continue
		}

		if err := dispatch(ctx, conn, g, user, cmd); err != nil {
			if game.ErrorCode(err) == "internal" {
				log.WithError(err).Error("command failed")
			}
			conn.Send(game.ErrorEvent(err))
		}
	}
}

func dispatch(ctx context.Context, conn *channel.Conn, g *game.GameSession, user models.User, cmd channel.Command) error {
	switch cmd := cmd.(type) {
	case channel.UpdateLocation:
		return g.UpdateLocation(ctx, user.ID, orb.Point{cmd.Longitude, cmd.Latitude})
	case channel.AddHint:
		_, err := g.AddHint(ctx, user.ID, cmd.Hint)
		return err
	case channel.SendChat:
		_, err := g.PostChat(ctx, user.ID, cmd.Message, cmd.TeamOnly)
		return err
	case channel.Ping:
		conn.Send(game.GameEvent{Type: game.EventPong})
	}
	return nil
}
