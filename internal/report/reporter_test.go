package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.NewDefault("report-test")
	log.SetOutput(io.Discard)
	return log
}

func testClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	client, err := api.New(api.Config{BaseURL: baseURL, Logger: testLogger()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestReport_DeliversIncident(t *testing.T) {
	var mu sync.Mutex
	var got Incident
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/error-reports" || r.Method != http.MethodPost {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		json.Unmarshal(body, &got)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	reporter := New(testClient(t, srv.URL), 2, testLogger())
	reporter.Report(context.Background(), Incident{Message: "render crashed", Path: "/kitchen"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := reporter.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Message != "render crashed" || got.Path != "/kitchen" {
		t.Fatalf("incident: %#v", got)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("timestamp must be filled in")
	}
}

func TestReport_SwallowsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reporter := New(testClient(t, srv.URL), 1, testLogger())
	reporter.Report(context.Background(), Incident{Message: "boom"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := reporter.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestReport_DropsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()

	reporter := New(testClient(t, srv.URL), 1, testLogger())
	ctx := context.Background()
	reporter.Report(ctx, Incident{Message: "first"})
	for i := 0; i < 5; i++ {
		reporter.Report(ctx, Incident{Message: "overflow"})
	}
	close(release)

	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	reporter.Flush(flushCtx)

	if reporter.Dropped() == 0 {
		t.Fatal("expected saturated reports to be dropped")
	}
}

func TestReportPanic_Recovers(t *testing.T) {
	delivered := make(chan Incident, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var incident Incident
		json.Unmarshal(body, &incident)
		delivered <- incident
	}))
	defer srv.Close()

	reporter := New(testClient(t, srv.URL), 1, testLogger())

	func() {
		defer reporter.ReportPanic(context.Background(), "worker")
		panic("kaboom")
	}()

	select {
	case incident := <-delivered:
		if incident.Severity != "panic" || incident.Stack == "" {
			t.Fatalf("incident: %#v", incident)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("panic report never delivered")
	}
}
