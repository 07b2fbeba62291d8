package board

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/system"
	"github.com/dinehall/boardlink/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 30 * time.Second

// ParseInterval parses a cron-style "@every 30s" schedule into a duration.
func ParseInterval(spec string) (time.Duration, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return 0, fmt.Errorf("board: parse interval %q: %w", spec, err)
	}
	every, ok := sched.(cron.ConstantDelaySchedule)
	if !ok {
		return 0, fmt.Errorf("board: interval %q must use the @every form", spec)
	}
	return every.Delay, nil
}

// Refresher polls the board on a fixed interval. Refresh runs once
// immediately on Start, then per tick while auto-refresh is enabled.
// Session expiry is terminal: polling stops until the next Start.
type Refresher struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration

	auto atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed board poller.
func NewRefresher(service *Service, interval time.Duration, log *logger.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.NewDefault("board-refresher")
	}
	r := &Refresher{
		service:  service,
		log:      log,
		interval: interval,
	}
	r.auto.Store(true)
	return r
}

func (r *Refresher) Name() string { return "board-refresher" }

// SetAutoRefresh gates ticks without stopping the loop. Re-enabling also
// re-arms the api client's session notification path via the next tick.
func (r *Refresher) SetAutoRefresh(enabled bool) {
	r.auto.Store(enabled)
}

// AutoRefresh reports whether ticks currently refresh.
func (r *Refresher) AutoRefresh() bool { return r.auto.Load() }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if !r.tick(runCtx) {
			return
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if !r.auto.Load() {
					continue
				}
				if !r.tick(runCtx) {
					return
				}
			}
		}
	}()

	r.log.WithField("interval", r.interval.String()).Info("board refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("board refresher stopped")
	return nil
}

// tick runs one refresh round. It returns false when polling must stop.
func (r *Refresher) tick(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	err := r.service.Refresh(ctx)
	if err == nil {
		return true
	}
	if api.IsSessionExpired(err) {
		r.auto.Store(false)
		r.log.Warn("session expired; board auto-refresh disabled")
		return false
	}
	r.log.WithError(err).Warn("board refresh tick failed")
	return true
}
