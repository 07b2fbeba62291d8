package automation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/domain"
	"github.com/dinehall/boardlink/pkg/logger"
)

func testService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.NewDefault("automation-test")
	log.SetOutput(io.Discard)
	client, err := api.New(api.Config{BaseURL: srv.URL, Logger: log})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return New(client, log)
}

func TestList_UnwrapsEnvelope(t *testing.T) {
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"subscriptions":[
			{"id":"w-1","url":"https://hooks.example/a","enabled":true,"events":["order.created"]},
			{"id":"w-2","target_url":"https://hooks.example/b","active":false}
		]}`)
	}))

	subs, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("subs: %#v", subs)
	}
	if subs[0].TargetURL != "https://hooks.example/a" || !subs[0].Active {
		t.Fatalf("first sub: %#v", subs[0])
	}
	if subs[1].Events == nil {
		t.Fatal("events must never be nil")
	}
}

func TestCreate_ValidatesLocally(t *testing.T) {
	called := false
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := svc.Create(context.Background(), domain.WebhookSubscription{
		TargetURL: "not a url",
		Events:    []string{"order.created"},
	})
	if err == nil {
		t.Fatal("expected URL validation error")
	}

	_, err = svc.Create(context.Background(), domain.WebhookSubscription{
		TargetURL: "https://hooks.example/x",
	})
	if err == nil {
		t.Fatal("expected missing events error")
	}

	if called {
		t.Fatal("invalid input must not reach the backend")
	}
}

func TestCreate_ReturnsBackendRecord(t *testing.T) {
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/webhook-subscriptions" {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"w-9","target_url":"https://hooks.example/x","active":true,"events":["order.created"]}`)
	}))

	created, err := svc.Create(context.Background(), domain.WebhookSubscription{
		TargetURL: "https://hooks.example/x",
		Events:    []string{"order.created"},
		Active:    true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "w-9" {
		t.Fatalf("created: %#v", created)
	}
}

func TestDeleteAndTestFire(t *testing.T) {
	var calls []string
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	ctx := context.Background()
	if err := svc.Delete(ctx, "w-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.TestFire(ctx, "w-1"); err != nil {
		t.Fatalf("test fire: %v", err)
	}
	if err := svc.Delete(ctx, ""); err == nil {
		t.Fatal("empty id must be rejected")
	}

	want := []string{"DELETE /webhook-subscriptions/w-1", "POST /webhook-subscriptions/w-1/test"}
	if len(calls) != len(want) || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("calls: %v", calls)
	}
}
