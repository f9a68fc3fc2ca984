package notify_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voxlate/voxlate/internal/notify"
	notifymock "github.com/voxlate/voxlate/internal/notify/mock"
)

// wireEvent mirrors the hub's broadcast envelope.
type wireEvent struct {
	Type   string             `json:"type"`
	Stats  *notify.QueueStats `json:"stats"`
	Status string             `json:"status"`
}

func newHubServer(t *testing.T) (*notify.Hub, *websocket.Conn) {
	t.Helper()

	hub := notify.NewHub(slog.Default())
	t.Cleanup(func() { hub.Close() })

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return hub, conn
}

// readEvent reads one broadcast event while repeatedly republishing via
// publish, which papers over the race between subscription and the first
// broadcast.
func readEvent(t *testing.T, conn *websocket.Conn, publish func()) wireEvent {
	t.Helper()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			publish()
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v, want text", typ)
	}
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return ev
}

func TestHubBroadcastsChunkStatus(t *testing.T) {
	hub, conn := newHubServer(t)

	ev := readEvent(t, conn, func() { hub.OnChunkStatus("recording") })
	if ev.Type != "chunk_status" {
		t.Errorf("type = %q, want chunk_status", ev.Type)
	}
	if ev.Status != "recording" {
		t.Errorf("status = %q, want recording", ev.Status)
	}
}

func TestHubBroadcastsStats(t *testing.T) {
	hub, conn := newHubServer(t)

	stats := notify.QueueStats{Queued: 2, Synthesizing: 1, Ready: 3}
	ev := readEvent(t, conn, func() { hub.OnStatsChanged(stats) })
	if ev.Type != "stats" {
		t.Errorf("type = %q, want stats", ev.Type)
	}
	if ev.Stats == nil || *ev.Stats != stats {
		t.Errorf("stats = %+v, want %+v", ev.Stats, stats)
	}
}

func TestHubDeliversCommands(t *testing.T) {
	hub, conn := newHubServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"action":"start"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case cmd := <-hub.Commands():
		if cmd.Action != "start" {
			t.Errorf("action = %q, want start", cmd.Action)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered")
	}
}

func TestHubIgnoresInvalidCommands(t *testing.T) {
	hub, conn := newHubServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`not json`)); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"action":"stop"}`)); err != nil {
		t.Fatalf("write command: %v", err)
	}

	select {
	case cmd := <-hub.Commands():
		if cmd.Action != "stop" {
			t.Errorf("action = %q, want stop", cmd.Action)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid command not delivered after invalid one")
	}
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	hub, conn := newHubServer(t)

	if err := hub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := hub.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("read succeeded on a closed hub connection")
	}
}

func TestMultiFansOut(t *testing.T) {
	a := &notifymock.Sink{}
	b := &notifymock.Sink{}
	m := notify.Multi{a, b}

	m.OnChunkStatus("translating")
	m.OnStatsChanged(notify.QueueStats{Queued: 1})

	for name, s := range map[string]*notifymock.Sink{"a": a, "b": b} {
		if got := s.StatusList(); len(got) != 1 || got[0] != "translating" {
			t.Errorf("sink %s statuses = %v", name, got)
		}
		if stats, ok := s.LastStats(); !ok || stats.Queued != 1 {
			t.Errorf("sink %s stats = %+v ok=%v", name, stats, ok)
		}
	}
}
