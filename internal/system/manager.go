package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dinehall/boardlink/pkg/logger"
)

// Manager starts registered services in registration order and stops them in
// reverse order. A service that fails to start aborts startup and triggers a
// rollback stop of everything already running.
type Manager struct {
	log         *logger.Logger
	stopTimeout time.Duration

	mu       sync.Mutex
	services []Service
	byName   map[string]struct{}
	started  bool
}

// NewManager creates an empty manager.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("system")
	}
	return &Manager{
		log:         log,
		stopTimeout: 10 * time.Second,
		byName:      make(map[string]struct{}),
	}
}

// Register adds a service. Names must be unique and registration is rejected
// once the manager has started.
func (m *Manager) Register(svc Service) error {
	if svc == nil || svc.Name() == "" {
		return fmt.Errorf("system: service must have a name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("system: cannot register %q after start", svc.Name())
	}
	if _, exists := m.byName[svc.Name()]; exists {
		return fmt.Errorf("system: service %q already registered", svc.Name())
	}
	m.byName[svc.Name()] = struct{}{}
	m.services = append(m.services, svc)
	return nil
}

// StartAll starts every registered service in order. On failure the services
// already started are stopped in reverse order before the error is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	services := make([]Service, len(m.services))
	copy(services, m.services)
	m.mu.Unlock()

	for i, svc := range services {
		if err := svc.Start(ctx); err != nil {
			m.log.WithError(err).WithField("svc", svc.Name()).Error("service failed to start")
			m.stopServices(services[:i])
			m.mu.Lock()
			m.started = false
			m.mu.Unlock()
			return fmt.Errorf("system: start %s: %w", svc.Name(), err)
		}
		m.log.WithField("svc", svc.Name()).Info("service started")
	}
	return nil
}

// StopAll stops every service in reverse registration order. Errors are
// logged per service and the first one is returned after all stops complete.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	services := make([]Service, len(m.services))
	copy(services, m.services)
	m.mu.Unlock()

	return m.stopServices(services)
}

func (m *Manager) stopServices(services []Service) error {
	var firstErr error
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		ctx, cancel := context.WithTimeout(context.Background(), m.stopTimeout)
		err := svc.Stop(ctx)
		cancel()
		if err != nil {
			m.log.WithError(err).WithField("svc", svc.Name()).Warn("service stop failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("system: stop %s: %w", svc.Name(), err)
			}
			continue
		}
		m.log.WithField("svc", svc.Name()).Info("service stopped")
	}
	return firstErr
}
