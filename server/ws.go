package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	// The API carries no credentials and job IDs are unguessable UUIDs;
	// the feed is no more sensitive than the GET endpoints.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleDownloadsFeed streams job state changes to a WebSocket client.
// Each message is one JobView. Delivery is best-effort: a slow client
// misses updates rather than stalling the store's notifier, and clients
// are expected to reconcile via GET on reconnect.
func (s *Server) handleDownloadsFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	updates := s.store.Subscribe()
	defer s.store.Unsubscribe(updates)

	s.logger.Infow("Feed client connected", "remote", r.RemoteAddr)

	// Read pump: we never expect client messages, but reading is the only
	// way to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pinger := time.NewTicker(wsPingInterval)
	defer pinger.Stop()

	for {
		select {
		case <-done:
			s.logger.Infow("Feed client disconnected", "remote", r.RemoteAddr)
			return
		case job := <-updates:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(newJobView(job)); err != nil {
				s.logger.Debugw("Feed write failed", "error", err, "remote", r.RemoteAddr)
				return
			}
		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
