package board

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/domain"
	"github.com/dinehall/boardlink/internal/metrics"
	"github.com/dinehall/boardlink/internal/normalize"
	"github.com/dinehall/boardlink/internal/notify"
	"github.com/dinehall/boardlink/pkg/logger"
)

// ErrNotFound is returned by mutators for an order id not in the snapshot.
var ErrNotFound = errors.New("board: order not found")

// ErrAllResourcesFailed is returned by Refresh when no resource could be
// fetched at all.
var ErrAllResourcesFailed = errors.New("board: all resource fetches failed")

// Service orchestrates the order board: settle-all refresh, optimistic
// mutators and realtime upserts. Mutations apply locally first and stand
// regardless of the backend outcome; the next refresh reconciles any
// divergence.
type Service struct {
	client  *api.Client
	store   *Store
	bus     *notify.Bus
	metrics *metrics.Metrics
	log     *logger.Logger

	failing atomic.Bool
}

// New creates a board service. Store, bus and metrics may be nil, in which
// case fresh instances are used.
func New(client *api.Client, store *Store, bus *notify.Bus, m *metrics.Metrics, log *logger.Logger) *Service {
	if store == nil {
		store = NewStore()
	}
	if bus == nil {
		bus = notify.New()
	}
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logger.NewDefault("board")
	}
	return &Service{client: client, store: store, bus: bus, metrics: m, log: log}
}

// Store exposes the snapshot holder for read-side consumers.
func (s *Service) Store() *Store { return s.store }

// Current returns a deep copy of the current snapshot.
func (s *Service) Current() Snapshot { return s.store.Current() }

// Refresh fetches orders, tables, staff and stats concurrently and swaps in
// a new snapshot. Each resource settles independently: a failed fetch
// contributes its empty default and its name in Partial. The error is
// non-nil only when every resource failed or the session expired.
func (s *Service) Refresh(ctx context.Context) error {
	started := time.Now()

	var (
		orders []domain.Order
		tables []domain.Table
		staff  []domain.Staff
		stats  domain.BoardStats
	)
	errs := make([]error, 4)

	// Plain Group, not WithContext: one resource failing must not cancel
	// the siblings.
	var g errgroup.Group
	g.Go(func() error {
		orders, errs[0] = s.fetchOrders(ctx)
		return nil
	})
	g.Go(func() error {
		tables, errs[1] = s.fetchTables(ctx)
		return nil
	})
	g.Go(func() error {
		staff, errs[2] = s.fetchStaff(ctx)
		return nil
	})
	g.Go(func() error {
		stats, errs[3] = s.fetchStats(ctx)
		return nil
	})
	g.Wait()

	resources := []string{"orders", "tables", "staff", "stats"}
	var partial []string
	for i, err := range errs {
		s.metrics.RefreshTotal.WithLabelValues(resources[i]).Inc()
		if err == nil {
			continue
		}
		if api.IsSessionExpired(err) {
			return err
		}
		s.metrics.RefreshFailures.WithLabelValues(resources[i]).Inc()
		s.log.WithError(err).WithField("resource", resources[i]).Warn("resource fetch failed")
		partial = append(partial, resources[i])
	}

	if len(partial) == len(resources) {
		// Toast once per transition into a failing state, not per poll.
		if s.failing.CompareAndSwap(false, true) {
			s.bus.Publish(notify.SeverityError, "Board refresh failed", "could not reach the backend")
		}
		return ErrAllResourcesFailed
	}

	if len(partial) > 0 {
		if s.failing.CompareAndSwap(false, true) {
			s.bus.Publish(notify.SeverityWarning, "Partial board refresh", fmt.Sprintf("stale: %v", partial))
		}
	} else {
		s.failing.Store(false)
	}

	s.store.Replace(Snapshot{
		Orders:      orders,
		Tables:      tables,
		Staff:       staff,
		Stats:       stats,
		RefreshedAt: time.Now(),
		Partial:     partial,
	})
	s.metrics.RefreshDuration.Observe(time.Since(started).Seconds())
	s.log.WithFields(map[string]any{
		"orders": len(orders),
		"tables": len(tables),
		"staff":  len(staff),
	}).Debug("board refreshed")
	return nil
}

func (s *Service) fetchOrders(ctx context.Context) ([]domain.Order, error) {
	resp, err := s.client.DoRaw(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return []domain.Order{}, err
	}
	orders := []domain.Order{}
	for _, item := range normalize.Items(resp.Body, "orders") {
		orders = append(orders, normalize.Order(item))
	}
	return orders, nil
}

func (s *Service) fetchTables(ctx context.Context) ([]domain.Table, error) {
	resp, err := s.client.DoRaw(ctx, http.MethodGet, "/tables", nil)
	if err != nil {
		return []domain.Table{}, err
	}
	tables := []domain.Table{}
	for _, item := range normalize.Items(resp.Body, "tables") {
		tables = append(tables, normalize.Table(item))
	}
	return tables, nil
}

func (s *Service) fetchStaff(ctx context.Context) ([]domain.Staff, error) {
	resp, err := s.client.DoRaw(ctx, http.MethodGet, "/staff", nil)
	if err != nil {
		return []domain.Staff{}, err
	}
	staff := []domain.Staff{}
	for _, item := range normalize.Items(resp.Body, "staff") {
		staff = append(staff, normalize.Staff(item))
	}
	return staff, nil
}

func (s *Service) fetchStats(ctx context.Context) (domain.BoardStats, error) {
	resp, err := s.client.DoRaw(ctx, http.MethodGet, "/stats", nil)
	if err != nil {
		return domain.BoardStats{}, err
	}
	return normalize.Stats(gjson.ParseBytes(resp.Body)), nil
}

// UpdateStatus sets an order's status locally and patches the backend.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if !domain.ValidOrderStatus(status) {
		return fmt.Errorf("board: invalid order status %q", status)
	}
	ok := s.store.MutateOrder(orderID, func(o *domain.Order) {
		o.Status = status
	})
	if !ok {
		return ErrNotFound
	}
	s.metrics.Mutations.WithLabelValues("status").Inc()
	return s.confirm(ctx, "update order status", func() error {
		return s.client.Patch(ctx, "/orders/"+orderID+"/status", map[string]string{"status": string(status)}, nil)
	})
}

// UpdateItemStatus sets one item's status locally, derives the parent
// order's status and patches the backend.
func (s *Service) UpdateItemStatus(ctx context.Context, orderID, itemID string, status domain.ItemStatus) error {
	if !domain.ValidItemStatus(status) {
		return fmt.Errorf("board: invalid item status %q", status)
	}
	found := false
	ok := s.store.MutateOrder(orderID, func(o *domain.Order) {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				o.Items[i].Status = status
				found = true
			}
		}
		if found {
			o.Status = domain.NextOrderStatus(*o)
		}
	})
	if !ok || !found {
		return ErrNotFound
	}
	s.metrics.Mutations.WithLabelValues("item_status").Inc()
	return s.confirm(ctx, "update item status", func() error {
		return s.client.Patch(ctx, "/orders/"+orderID+"/items/"+itemID+"/status", map[string]string{"status": string(status)}, nil)
	})
}

// Void cancels an order locally and posts the void to the backend.
func (s *Service) Void(ctx context.Context, orderID, reason string) error {
	ok := s.store.MutateOrder(orderID, func(o *domain.Order) {
		o.Status = domain.OrderCancelled
		o.Voided = true
	})
	if !ok {
		return ErrNotFound
	}
	s.metrics.Mutations.WithLabelValues("void").Inc()
	return s.confirm(ctx, "void order", func() error {
		return s.client.Post(ctx, "/orders/"+orderID+"/void", map[string]string{"reason": reason}, nil)
	})
}

// Refund flags an order refunded locally and posts the refund.
func (s *Service) Refund(ctx context.Context, orderID string, amount float64, reason string) error {
	ok := s.store.MutateOrder(orderID, func(o *domain.Order) {
		o.Refunded = true
	})
	if !ok {
		return ErrNotFound
	}
	s.metrics.Mutations.WithLabelValues("refund").Inc()
	return s.confirm(ctx, "refund order", func() error {
		return s.client.Post(ctx, "/orders/"+orderID+"/refund", map[string]any{"amount": amount, "reason": reason}, nil)
	})
}

// SetPriority sets an order's priority tier, clamped at zero.
func (s *Service) SetPriority(ctx context.Context, orderID string, priority int) error {
	if priority < 0 {
		priority = 0
	}
	ok := s.store.MutateOrder(orderID, func(o *domain.Order) {
		o.Priority = priority
	})
	if !ok {
		return ErrNotFound
	}
	s.metrics.Mutations.WithLabelValues("priority").Inc()
	return s.confirm(ctx, "set order priority", func() error {
		return s.client.Patch(ctx, "/orders/"+orderID, map[string]int{"priority": priority}, nil)
	})
}

// Reprint bumps the reprint counter and asks the backend to print the
// ticket again.
func (s *Service) Reprint(ctx context.Context, orderID string) error {
	ok := s.store.MutateOrder(orderID, func(o *domain.Order) {
		o.ReprintCount++
	})
	if !ok {
		return ErrNotFound
	}
	s.metrics.Mutations.WithLabelValues("reprint").Inc()
	return s.confirm(ctx, "reprint ticket", func() error {
		return s.client.Post(ctx, "/orders/"+orderID+"/print", nil, nil)
	})
}

// ApplyRemote upserts an order pushed over the realtime feed.
func (s *Service) ApplyRemote(order domain.Order) {
	if order.ID == "" {
		return
	}
	s.store.UpsertOrder(order)
}

// confirm runs the backend half of an optimistic mutation. The local change
// already happened and stands either way; failures surface as a warning
// toast plus the returned error, and the next refresh reconciles.
func (s *Service) confirm(ctx context.Context, action string, call func() error) error {
	err := call()
	if err == nil {
		return nil
	}
	s.log.WithError(err).Warn(action + " not confirmed by backend")
	if !api.IsSessionExpired(err) {
		s.bus.Publish(notify.SeverityWarning, "Change not saved", action+" failed; the board will resync")
	}
	return err
}
