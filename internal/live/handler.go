package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"inkpad/api/internal/access"
	"inkpad/api/internal/editor"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20
	flushTimeout   = 5 * time.Second
)

// Handler upgrades HTTP requests into editing sessions.
type Handler struct {
	docs     documents
	autosave editor.AutosaveOptions
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(docs documents, autosave editor.AutosaveOptions, allowedOrigins []string, logger zerolog.Logger) *Handler {
	h := &Handler{docs: docs, autosave: autosave, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Serve opens the document and, if that succeeds, upgrades the request and
// runs the session until the client disconnects. Errors returned before the
// upgrade are for the caller to report over HTTP.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, caller access.Subject, documentID string) error {
	c := &conn{logger: h.logger.With().Str("document_id", documentID).Str("user_id", caller.UserID).Logger()}

	opts := h.autosave
	opts.Logger = c.logger
	session, err := Open(r.Context(), h.docs, caller, documentID, opts, c.send)
	if err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		session.Close(context.Background())
		c.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	c.attach(ws)
	c.logger.Info().Msg("live session opened")

	done := make(chan struct{})
	go c.pingLoop(done)

	c.send(session.Snapshot())
	c.readLoop(session)
	close(done)

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	session.Close(ctx)
	cancel()
	c.close()
	c.logger.Info().Msg("live session closed")
	return nil
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	logger zerolog.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

func (c *conn) attach(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *conn) send(msg ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil || c.closed {
		return
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("live write failed")
	}
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *conn) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (c *conn) readLoop(session *Session) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("live read failed")
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(errorMessage("BAD_MESSAGE", "message is not valid JSON"))
			continue
		}
		c.send(session.Handle(msg))
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	_ = c.ws.Close()
}
