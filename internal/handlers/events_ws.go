// internal/handlers/events_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/events"
	"github.com/jason-s-yu/pokerdice/internal/game"
	"github.com/jason-s-yu/pokerdice/internal/middleware"
	"github.com/sirupsen/logrus"
)

// eventsSubprotocol is the websocket subprotocol clients must request.
const eventsSubprotocol = "events"

// wsChannel delivers registry events over a websocket.
type wsChannel struct {
	conn *websocket.Conn

	mu       sync.Mutex
	onClose  func(error)
	closed   bool
	closeErr error
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{conn: conn}
}

// Send writes ev as a JSON text frame.
func (c *wsChannel) Send(ctx context.Context, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// OnClose installs fn. If the connection already ended fn runs immediately.
func (c *wsChannel) OnClose(fn func(error)) {
	c.mu.Lock()
	if !c.closed {
		c.onClose = fn
		c.mu.Unlock()
		return
	}
	err := c.closeErr
	c.mu.Unlock()
	fn(err)
}

// finish records how the connection ended and fires the close callback once.
func (c *wsChannel) finish(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = err
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Close is called by the registry on shutdown.
func (c *wsChannel) Close() error {
	return c.conn.Close(websocket.StatusGoingAway, "server shutting down")
}

// originHosts strips the scheme from CORS origins; websocket origin patterns match hosts.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, o)
	}
	return out
}

// readUntilClosed drains client frames so control frames are processed, and returns
// nil for a clean close.
func readUntilClosed(ctx context.Context, c *websocket.Conn) error {
	for {
		if _, _, err := c.Read(ctx); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// EventsWSHandler registers the authenticated player's websocket with the event
// registry. With ?game={id} the player is sent a state snapshot right after registering.
func (api *API) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	playerID, ok := middleware.PlayerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing session"})
		return
	}
	var syncGame uuid.UUID
	if q := r.URL.Query().Get("game"); q != "" {
		id, err := uuid.Parse(q)
		if err != nil {
			badRequest(w, "invalid game")
			return
		}
		syncGame = id
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{eventsSubprotocol},
		OriginPatterns: originHosts(api.AllowedOrigins),
	})
	if err != nil {
		api.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != eventsSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the events subprotocol")
		return
	}

	middleware.LogWebSocketConnect(api.Logger, r.RemoteAddr, r.URL.Path)
	ch := newWSChannel(c)
	api.Registry.Register(playerID, ch)
	defer api.Registry.Unregister(ch)

	if syncGame != uuid.Nil {
		st, err := api.Games.State(r.Context(), syncGame)
		if err != nil {
			api.Logger.WithFields(logrus.Fields{"player": playerID, "game": syncGame, "error": err}).Debug("state sync skipped")
		} else {
			api.Registry.EmitToPlayer(playerID, events.Message(string(game.EventGameState), st))
		}
	}

	err = readUntilClosed(r.Context(), c)
	ch.finish(err)
	middleware.LogWebSocketDisconnect(api.Logger, r.RemoteAddr, r.URL.Path, err)
	if err == nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
}
