package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/notnon-video/catalog"
	"github.com/gosuda/notnon-video/player"
)

// session is one browser's controller plus its open websocket connections.
// mu serializes every event for the session.
type session struct {
	id    string
	mu    sync.Mutex
	ctrl  *player.Controller
	conns map[*wsConn]struct{}
	seen  time.Time
}

// hub keeps the current working set and every session built from it.
type hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	set      catalog.WorkingSet
	loadErr  error
	loc      *time.Location
	history  *historyStore
	wg       sync.WaitGroup
}

func newHub(loc *time.Location, history *historyStore) *hub {
	if loc == nil {
		loc = time.Local
	}
	return &hub{
		sessions: make(map[string]*session),
		set:      catalog.WorkingSet{},
		loc:      loc,
		history:  history,
	}
}

// publish receives every manifest load and re-renders all sessions.
func (h *hub) publish(ws catalog.WorkingSet, err error) {
	h.mu.Lock()
	h.set = ws
	h.loadErr = err
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.pushLocked(s.ctrl.Publish(ws, err))
		s.mu.Unlock()
	}
	log.Debug().Int("sessions", len(sessions)).Msg("[video] reload pushed")
}

// snapshot returns the current working set and load error.
func (h *hub) snapshot() (catalog.WorkingSet, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.set, h.loadErr
}

// session returns the session for id, creating a fresh one when id is unknown.
func (h *hub) session(id string) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok && id != "" {
		s.mu.Lock()
		s.seen = time.Now()
		s.mu.Unlock()
		return s
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	ctrl := player.New(player.WithLocation(h.loc))
	ctrl.Publish(h.set, h.loadErr)
	s := &session{
		id:    id,
		ctrl:  ctrl,
		conns: make(map[*wsConn]struct{}),
		seen:  time.Now(),
	}
	h.sessions[id] = s
	return s
}

// apply runs fn against the session controller, records a new playback in
// the history and pushes the resulting ops to the session's sockets.
func (h *hub) apply(s *session, fn func(*player.Controller) []player.Op) ([]player.Op, player.View) {
	s.mu.Lock()
	before := s.ctrl.State().PlaySeq
	ops := fn(s.ctrl)
	st := s.ctrl.State()
	view := st.View()
	s.pushLocked(ops)
	s.mu.Unlock()

	if st.PlaySeq != before && st.Surface == player.Playing {
		if err := h.history.Append(historyEntry{At: time.Now().UTC(), URL: st.ActiveURL, Filename: st.Title}); err != nil {
			log.Debug().Err(err).Msg("[history] append failed")
		}
	}
	return ops, view
}

// view returns the session's current projection.
func (s *session) view() player.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.View()
}

// sweep drops sessions that have no sockets and were idle longer than maxIdle.
func (h *hub) sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for id, s := range h.sessions {
		s.mu.Lock()
		idle := len(s.conns) == 0 && s.seen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(h.sessions, id)
			n++
		}
	}
	return n
}

// closeAll asks every websocket to close (used during shutdown).
func (h *hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		s.mu.Lock()
		for c := range s.conns {
			delete(s.conns, c)
			c.close()
		}
		s.mu.Unlock()
	}
}

// wait blocks until all websocket handlers have returned.
func (h *hub) wait() {
	h.wg.Wait()
}

type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.send) })
}

type serverMessage struct {
	T   string      `json:"t"`
	Ops []player.Op `json:"ops"`
}

type clientMessage struct {
	T     string `json:"t"`
	Q     string `json:"q,omitempty"`
	Index *int   `json:"index,omitempty"`
	URL   string `json:"url,omitempty"`
}

// pushLocked queues ops on every socket of s. The caller holds s.mu so that
// sockets see ops in the order the controller produced them.
func (s *session) pushLocked(ops []player.Op) {
	if len(ops) == 0 {
		return
	}
	msg, err := json.Marshal(serverMessage{T: "ops", Ops: ops})
	if err != nil {
		return
	}
	for c := range s.conns {
		select {
		case c.send <- msg:
		default:
			// Slow reader; drop it and let the page reconnect.
			delete(s.conns, c)
			c.close()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request, s *session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsConn{conn: conn, send: make(chan []byte, 64)}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	// Pushes missed while disconnected are lost; repaint the whole view.
	if msg, err := json.Marshal(serverMessage{T: "sync", Ops: player.Paint(s.ctrl.View())}); err == nil {
		c.send <- msg
	}
	s.mu.Unlock()

	h.wg.Add(1)
	go c.writePump()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.seen = time.Now()
		s.mu.Unlock()
		c.close()
		h.wg.Done()
	}()

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		var m clientMessage
		if err := conn.ReadJSON(&m); err != nil {
			return
		}
		switch {
		case m.T == "search":
			h.apply(s, func(c *player.Controller) []player.Op { return c.Search(m.Q) })
		case m.T == "select" && m.Index != nil:
			idx := *m.Index
			h.apply(s, func(c *player.Controller) []player.Op { return c.Select(idx) })
		case m.T == "select" && m.URL != "":
			h.apply(s, func(c *player.Controller) []player.Op { return c.SelectURL(m.URL) })
		default:
			log.Debug().Str("t", m.T).Msg("[video] ignoring websocket message")
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
