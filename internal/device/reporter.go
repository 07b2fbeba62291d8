// Package device reports KDS terminal heartbeats: every interval the
// daemon samples host CPU and memory and posts them to the backend so the
// fleet dashboard can spot dead or struggling screens.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/system"
	"github.com/dinehall/boardlink/pkg/logger"
)

var _ system.Service = (*Reporter)(nil)

// DefaultInterval is the heartbeat cadence when none is configured.
const DefaultInterval = 60 * time.Second

// Identity names this terminal to the backend.
type Identity struct {
	ID         string `json:"device_id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	AppVersion string `json:"app_version"`
}

type heartbeat struct {
	Identity
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// Sample holds one host utilization reading.
type Sample struct {
	CPUPercent float64
	MemPercent float64
}

// Sampler reads host utilization. The default uses gopsutil.
type Sampler func(ctx context.Context) (Sample, error)

// HostSampler samples real CPU and memory utilization.
func HostSampler(ctx context.Context) (Sample, error) {
	var sample Sample
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return sample, err
	}
	if len(percents) > 0 {
		sample.CPUPercent = percents[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sample, err
	}
	sample.MemPercent = vm.UsedPercent
	return sample, nil
}

// Reporter posts heartbeats on a fixed interval. Failures log and the next
// tick tries again.
type Reporter struct {
	client   *api.Client
	identity Identity
	sampler  Sampler
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewReporter creates a heartbeat reporter for this terminal.
func NewReporter(client *api.Client, identity Identity, interval time.Duration, log *logger.Logger) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.NewDefault("device")
	}
	return &Reporter{
		client:   client,
		identity: identity,
		sampler:  HostSampler,
		interval: interval,
		log:      log,
	}
}

// WithSampler swaps the utilization source, for tests.
func (r *Reporter) WithSampler(sampler Sampler) {
	r.mu.Lock()
	if sampler != nil {
		r.sampler = sampler
	}
	r.mu.Unlock()
}

func (r *Reporter) Name() string { return "device-heartbeat" }

func (r *Reporter) Start(ctx context.Context) error {
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
		r.tick(runCtx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.WithField("device", r.identity.ID).Info("device heartbeat started")
	return nil
}

func (r *Reporter) Stop(ctx context.Context) error {
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

	r.log.Info("device heartbeat stopped")
	return nil
}

func (r *Reporter) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r.mu.Lock()
	sampler := r.sampler
	r.mu.Unlock()

	sample, err := sampler(ctx)
	if err != nil {
		r.log.WithError(err).Warn("host sample failed")
		return
	}

	hb := heartbeat{Identity: r.identity, CPUPercent: sample.CPUPercent, MemPercent: sample.MemPercent}
	if err := r.client.Post(ctx, "/devices/heartbeat", hb, nil); err != nil {
		r.log.WithError(err).Warn("heartbeat not delivered")
	}
}
