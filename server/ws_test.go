package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vidsaver/vidsaver/gate"
	vstest "github.com/vidsaver/vidsaver/internal/testing"
	"github.com/vidsaver/vidsaver/queue"
)

func TestDownloadsFeedStreamsUpdates(t *testing.T) {
	store := queue.NewStore(vstest.CreateTestDB(t))
	pool := queue.NewWorkerPool(context.Background(), store, nil, nil,
		queue.DefaultPolicy(), queue.DefaultWorkerPoolConfig(), zap.NewNop().Sugar())
	srv := New(store, pool, gate.New(100, time.Hour), Config{}, zap.NewNop().Sugar())

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/downloads"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to register its subscription before
	// the state change fires.
	time.Sleep(50 * time.Millisecond)

	job := queue.NewJob("https://example.com/v", "alice")
	if err := store.CreateJob(job); err != nil {
		t.Fatalf("create: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var view JobView
	if err := conn.ReadJSON(&view); err != nil {
		t.Fatalf("expected a feed message: %v", err)
	}
	if view.ID != job.ID {
		t.Errorf("expected update for %s, got %s", job.ID, view.ID)
	}
	if view.Status != "queued" {
		t.Errorf("feed must speak the public vocabulary, got %s", view.Status)
	}

	// A claim produces a second update with the projected status.
	if _, err := store.ClaimNext(1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&view); err != nil {
		t.Fatalf("expected a claim update: %v", err)
	}
	if view.Status != "downloading" {
		t.Errorf("expected downloading, got %s", view.Status)
	}
}
