package realtime

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/dinehall/boardlink/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.NewDefault("realtime-test")
	log.SetOutput(io.Discard)
	return log
}

// wsServer upgrades each connection and writes the given frames.
func wsServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection so the client does not reconnect mid-test.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_DispatchesFrames(t *testing.T) {
	srv := wsServer(t, []string{
		`{"event":"order.created","payload":{"id":"o-9","number":"1099"}}`,
		`not even json`,
		`{"payload":{"id":"ignored, no event"}}`,
		`{"event":"order.updated","payload":{"id":"o-9","status":"ready"}}`,
	})
	defer srv.Close()

	client, err := New(wsURL(srv), nil, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	created := make(chan gjson.Result, 1)
	updated := make(chan gjson.Result, 1)
	client.On("order.created", func(p gjson.Result) { created <- p })
	client.On("order.updated", func(p gjson.Result) { updated <- p })

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer client.Stop(context.Background())

	select {
	case p := <-created:
		if p.Get("id").String() != "o-9" {
			t.Fatalf("created payload: %s", p.Raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("order.created never dispatched")
	}
	select {
	case p := <-updated:
		if p.Get("status").String() != "ready" {
			t.Fatalf("updated payload: %s", p.Raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("order.updated never dispatched")
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	connects := make(chan struct{}, 8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connects <- struct{}{}
		conn.Close() // drop immediately to force a reconnect
	}))
	defer srv.Close()

	client, err := New(wsURL(srv), nil, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer client.Stop(context.Background())

	for i := 0; i < 2; i++ {
		select {
		case <-connects:
		case <-time.After(5 * time.Second):
			t.Fatalf("connection %d never arrived", i+1)
		}
	}
}

func TestClient_StopEndsSession(t *testing.T) {
	srv := wsServer(t, nil)
	defer srv.Close()

	client, err := New(wsURL(srv), nil, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// Stop twice is a no-op.
	if err := client.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New("", nil, testLogger()); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
