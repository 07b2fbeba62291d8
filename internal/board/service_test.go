package board

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/domain"
	"github.com/dinehall/boardlink/internal/notify"
	"github.com/dinehall/boardlink/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.NewDefault("board-test")
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

// backend is a minimal fake of the restaurant API.
type backend struct {
	mu         sync.Mutex
	ordersJSON string
	tablesErr  bool
	allErr     bool
	mutations  []string
	mutateErr  bool
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.allErr {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, b.ordersJSON)
	})
	mux.HandleFunc("GET /tables", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.allErr || b.tablesErr {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"tables":[{"id":"t-1","number":"1","status":"occupied"}]}`)
	})
	mux.HandleFunc("GET /staff", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.allErr {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `[{"id":"s-1","name":"Amy","role":"waiter","active":true}]`)
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.allErr {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"open_orders":3,"revenue":412.5}`)
	})
	mux.HandleFunc("/orders/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.mutateErr {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		b.mutations = append(b.mutations, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (b *backend) mutationCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.mutations)
}

func defaultOrdersJSON() string {
	return `{"orders":[{
		"id": "o-1",
		"order_number": "1042",
		"status": "preparing",
		"items": [
			{"id":"i-1","name":"Burger","quantity":2,"status":"ready","station":"kitchen"},
			{"id":"i-2","name":"Fries","quantity":1,"status":"queued","station":"kitchen"}
		]
	}]}`
}

func newTestService(t *testing.T, b *backend) (*Service, *notify.Bus) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	bus := notify.New()
	t.Cleanup(bus.Close)
	svc := New(testClient(t, srv.URL), nil, bus, nil, testLogger())
	return svc, bus
}

func TestRefresh_PopulatesSnapshot(t *testing.T) {
	b := &backend{ordersJSON: defaultOrdersJSON()}
	svc, _ := newTestService(t, b)

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap := svc.Current()
	if len(snap.Orders) != 1 || snap.Orders[0].Number != "1042" {
		t.Fatalf("orders: %#v", snap.Orders)
	}
	if len(snap.Orders[0].Items) != 2 {
		t.Fatalf("items: %#v", snap.Orders[0].Items)
	}
	if len(snap.Tables) != 1 || snap.Tables[0].Status != domain.TableOccupied {
		t.Fatalf("tables: %#v", snap.Tables)
	}
	if len(snap.Staff) != 1 || snap.Staff[0].Name != "Amy" {
		t.Fatalf("staff: %#v", snap.Staff)
	}
	if snap.Stats.OpenOrders != 3 || snap.Stats.Revenue != 412.5 {
		t.Fatalf("stats: %#v", snap.Stats)
	}
	if len(snap.Partial) != 0 {
		t.Fatalf("partial: %v", snap.Partial)
	}
	if snap.RefreshedAt.IsZero() {
		t.Fatal("refreshed_at not set")
	}
}

func TestRefresh_OneResourceFailing(t *testing.T) {
	b := &backend{ordersJSON: defaultOrdersJSON(), tablesErr: true}
	svc, _ := newTestService(t, b)

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh must tolerate one failed resource: %v", err)
	}

	snap := svc.Current()
	if len(snap.Orders) != 1 {
		t.Fatalf("orders must still populate: %#v", snap.Orders)
	}
	if snap.Tables == nil || len(snap.Tables) != 0 {
		t.Fatalf("failed resource must be the empty default: %#v", snap.Tables)
	}
	if len(snap.Partial) != 1 || snap.Partial[0] != "tables" {
		t.Fatalf("partial: %v", snap.Partial)
	}
}

func TestRefresh_AllFailingToastsOnce(t *testing.T) {
	b := &backend{ordersJSON: defaultOrdersJSON(), allErr: true}
	svc, bus := newTestService(t, b)

	var mu sync.Mutex
	toasts := 0
	bus.Subscribe(func(ev notify.Event) {
		if ev.Kind == notify.EventCreated {
			mu.Lock()
			toasts++
			mu.Unlock()
		}
	})

	for i := 0; i < 3; i++ {
		if err := svc.Refresh(context.Background()); !errors.Is(err, ErrAllResourcesFailed) {
			t.Fatalf("round %d: expected ErrAllResourcesFailed, got %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if toasts != 1 {
		t.Fatalf("error toast fired %d times, want once per failure transition", toasts)
	}
}

func TestUpdateItemStatus_DerivesOrderStatus(t *testing.T) {
	b := &backend{ordersJSON: defaultOrdersJSON()}
	svc, _ := newTestService(t, b)
	ctx := context.Background()

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Both kitchen items ready while preparing -> order becomes ready.
	if err := svc.UpdateItemStatus(ctx, "o-1", "i-2", domain.ItemReady); err != nil {
		t.Fatalf("item ready: %v", err)
	}
	order, _ := svc.Store().Order("o-1")
	if order.Status != domain.OrderReady {
		t.Fatalf("status after all ready: %s", order.Status)
	}

	// Every item served -> order becomes served.
	if err := svc.UpdateItemStatus(ctx, "o-1", "i-1", domain.ItemServed); err != nil {
		t.Fatalf("burger served: %v", err)
	}
	if err := svc.UpdateItemStatus(ctx, "o-1", "i-2", domain.ItemServed); err != nil {
		t.Fatalf("fries served: %v", err)
	}
	order, _ = svc.Store().Order("o-1")
	if order.Status != domain.OrderServed {
		t.Fatalf("status after all served: %s", order.Status)
	}
}

func TestMutators_UnknownOrder(t *testing.T) {
	b := &backend{ordersJSON: `[]`}
	svc, _ := newTestService(t, b)
	ctx := context.Background()

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	calls := []error{
		svc.UpdateStatus(ctx, "ghost", domain.OrderReady),
		svc.UpdateItemStatus(ctx, "ghost", "i-1", domain.ItemReady),
		svc.Void(ctx, "ghost", "test"),
		svc.Refund(ctx, "ghost", 5, "test"),
		svc.SetPriority(ctx, "ghost", 2),
		svc.Reprint(ctx, "ghost"),
	}
	for i, err := range calls {
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("mutator %d: expected ErrNotFound, got %v", i, err)
		}
	}
	if got := b.mutationCount(); got != 0 {
		t.Fatalf("unknown ids must not reach the backend, saw %d calls", got)
	}
}

func TestMutators_OptimisticWithoutRollback(t *testing.T) {
	b := &backend{ordersJSON: defaultOrdersJSON(), mutateErr: true}
	svc, bus := newTestService(t, b)
	ctx := context.Background()

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	warned := make(chan struct{}, 1)
	bus.Subscribe(func(ev notify.Event) {
		if ev.Kind == notify.EventCreated && ev.Toast.Severity == notify.SeverityWarning {
			select {
			case warned <- struct{}{}:
			default:
			}
		}
	})

	err := svc.Void(ctx, "o-1", "customer left")
	if err == nil {
		t.Fatal("expected backend error to surface")
	}

	// Local change stands; the next poll reconciles.
	order, ok := svc.Store().Order("o-1")
	if !ok || !order.Voided || order.Status != domain.OrderCancelled {
		t.Fatalf("optimistic change rolled back: %#v", order)
	}
	select {
	case <-warned:
	default:
		t.Fatal("expected a warning toast for the failed confirmation")
	}
}

func TestMutators_HitExpectedEndpoints(t *testing.T) {
	b := &backend{ordersJSON: defaultOrdersJSON()}
	svc, _ := newTestService(t, b)
	ctx := context.Background()

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := svc.UpdateStatus(ctx, "o-1", domain.OrderReady); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := svc.SetPriority(ctx, "o-1", -3); err != nil {
		t.Fatalf("set priority: %v", err)
	}
	if err := svc.Reprint(ctx, "o-1"); err != nil {
		t.Fatalf("reprint: %v", err)
	}

	order, _ := svc.Store().Order("o-1")
	if order.Priority != 0 {
		t.Fatalf("priority must clamp at zero, got %d", order.Priority)
	}
	if order.ReprintCount != 1 {
		t.Fatalf("reprint count: %d", order.ReprintCount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	want := []string{
		"PATCH /orders/o-1/status",
		"PATCH /orders/o-1",
		"POST /orders/o-1/print",
	}
	if len(b.mutations) != len(want) {
		t.Fatalf("backend calls: %v", b.mutations)
	}
	for i := range want {
		if b.mutations[i] != want[i] {
			t.Fatalf("call %d: got %q want %q", i, b.mutations[i], want[i])
		}
	}
}

func TestApplyRemote_Upserts(t *testing.T) {
	b := &backend{ordersJSON: defaultOrdersJSON()}
	svc, _ := newTestService(t, b)

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	svc.ApplyRemote(domain.Order{ID: "o-2", Number: "1043", Status: domain.OrderPending, Items: []domain.OrderItem{}})
	svc.ApplyRemote(domain.Order{ID: "o-1", Number: "1042", Status: domain.OrderServed, Items: []domain.OrderItem{}})
	svc.ApplyRemote(domain.Order{}) // no id, dropped

	snap := svc.Current()
	if len(snap.Orders) != 2 {
		t.Fatalf("orders after upsert: %#v", snap.Orders)
	}
	order, _ := svc.Store().Order("o-1")
	if order.Status != domain.OrderServed {
		t.Fatalf("upsert did not replace: %#v", order)
	}
}

func TestStore_CurrentIsDeepCopy(t *testing.T) {
	store := NewStore()
	store.Replace(Snapshot{Orders: []domain.Order{{
		ID:    "o-1",
		Items: []domain.OrderItem{{ID: "i-1", Modifiers: []string{"no onion"}}},
	}}})

	snap := store.Current()
	snap.Orders[0].Items[0].Modifiers[0] = "mutated"
	snap.Orders[0].Status = domain.OrderCancelled

	fresh := store.Current()
	if fresh.Orders[0].Items[0].Modifiers[0] != "no onion" {
		t.Fatal("modifiers aliased between snapshot copies")
	}
	if fresh.Orders[0].Status == domain.OrderCancelled {
		t.Fatal("order aliased between snapshot copies")
	}
}
