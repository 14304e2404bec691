package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/joescharf/focus/internal/timer"
)

const wsWriteTimeout = 5 * time.Second

// Hub fans timer snapshots out to websocket subscribers. Each subscriber
// holds at most one pending snapshot; a newer one replaces it.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan timer.Snapshot]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan timer.Snapshot]struct{})}
}

// Publish delivers snap to the user's subscribers without blocking.
func (h *Hub) Publish(userID string, snap timer.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribe registers for the user's snapshots. The returned func unsubscribes.
func (h *Hub) Subscribe(userID string) (<-chan timer.Snapshot, func()) {
	ch := make(chan timer.Snapshot, 1)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan timer.Snapshot]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[userID], ch)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Subscribers returns the number of live subscribers for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

type wsMessage struct {
	Type  string    `json:"type"`
	Timer TimerView `json:"timer"`
}

// timerFeed streams the user's timer over a websocket: the current snapshot
// first, then one message per tick or transition.
func (s *Server) timerFeed(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user", user).Msg("websocket accept")
		return
	}
	defer func() { _ = conn.CloseNow() }()

	updates, unsubscribe := s.hub.Subscribe(user)
	defer unsubscribe()

	// Client messages are ignored; the returned context ends when it disconnects.
	ctx := conn.CloseRead(r.Context())

	if err := writeSnapshot(ctx, conn, s.timers.Get(user).Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if err := writeSnapshot(ctx, conn, snap); err != nil {
				s.log.Debug().Err(err).Str("user", user).Msg("websocket write")
				return
			}
		}
	}
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, snap timer.Snapshot) error {
	data, err := json.Marshal(wsMessage{Type: "snapshot", Timer: TimerViewOf(snap)})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
