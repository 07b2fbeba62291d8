package insights

import (
	"context"
	"sync"
	"time"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/system"
	"github.com/dinehall/boardlink/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// DefaultInterval is the analytics poll cadence. Insights move slowly;
// polling faster than the board buys nothing.
const DefaultInterval = 5 * time.Minute

// Refresher polls the insights snapshot on a fixed interval.
type Refresher struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed insights poller.
func NewRefresher(service *Service, interval time.Duration, log *logger.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.NewDefault("insights-refresher")
	}
	return &Refresher{
		service:  service,
		log:      log,
		interval: interval,
	}
}

func (r *Refresher) Name() string { return "insights-refresher" }

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
				if !r.tick(runCtx) {
					return
				}
			}
		}
	}()

	r.log.WithField("interval", r.interval.String()).Info("insights refresher started")
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

	r.log.Info("insights refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	err := r.service.Refresh(ctx)
	if err == nil {
		return true
	}
	if api.IsSessionExpired(err) {
		r.log.Warn("session expired; insights polling stopped")
		return false
	}
	r.log.WithError(err).Warn("insights refresh tick failed")
	return true
}
