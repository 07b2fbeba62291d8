// Package insights aggregates the analytics endpoints (delivery platform
// profitability, feedback sentiment, wait-time telemetry) into one snapshot
// for the ops dashboard. Same settle-all semantics as the board: resources
// fail independently and failed slots keep their empty defaults.
package insights

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/domain"
	"github.com/dinehall/boardlink/internal/normalize"
	"github.com/dinehall/boardlink/pkg/logger"
)

// ErrAllResourcesFailed is returned when no analytics endpoint answered.
var ErrAllResourcesFailed = errors.New("insights: all resource fetches failed")

// Snapshot is one consistent view of the analytics surface.
type Snapshot struct {
	Platforms   []domain.PlatformReport `json:"platforms"`
	Sentiment   domain.SentimentSummary `json:"sentiment"`
	WaitTimes   []domain.WaitEstimate   `json:"wait_times"`
	RefreshedAt time.Time               `json:"refreshed_at"`
	Partial     []string                `json:"partial,omitempty"`
}

// Service fetches and holds the insights snapshot. Reads go through the
// retry-enabled client view; everything here is idempotent GETs.
type Service struct {
	client *api.RetryClient
	log    *logger.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// New creates an insights service.
func New(client *api.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("insights")
	}
	return &Service{
		client: client.WithRetry(api.DefaultRetryPolicy()),
		log:    log,
		snap: Snapshot{
			Platforms: []domain.PlatformReport{},
			WaitTimes: []domain.WaitEstimate{},
		},
	}
}

// Current returns a copy of the snapshot.
func (s *Service) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.Platforms = append([]domain.PlatformReport(nil), s.snap.Platforms...)
	if out.Platforms == nil {
		out.Platforms = []domain.PlatformReport{}
	}
	out.WaitTimes = append([]domain.WaitEstimate(nil), s.snap.WaitTimes...)
	if out.WaitTimes == nil {
		out.WaitTimes = []domain.WaitEstimate{}
	}
	out.Partial = append([]string(nil), s.snap.Partial...)
	return out
}

// Refresh fetches all three resources concurrently and swaps the snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	var (
		platforms []domain.PlatformReport
		sentiment domain.SentimentSummary
		waits     []domain.WaitEstimate
	)
	errs := make([]error, 3)

	var g errgroup.Group
	g.Go(func() error {
		platforms, errs[0] = s.fetchPlatforms(ctx)
		return nil
	})
	g.Go(func() error {
		sentiment, errs[1] = s.fetchSentiment(ctx)
		return nil
	})
	g.Go(func() error {
		waits, errs[2] = s.fetchWaitTimes(ctx)
		return nil
	})
	g.Wait()

	resources := []string{"platforms", "sentiment", "wait_times"}
	var partial []string
	for i, err := range errs {
		if err == nil {
			continue
		}
		if api.IsSessionExpired(err) {
			return err
		}
		s.log.WithError(err).WithField("resource", resources[i]).Warn("insights fetch failed")
		partial = append(partial, resources[i])
	}
	if len(partial) == len(resources) {
		return ErrAllResourcesFailed
	}

	s.mu.Lock()
	s.snap = Snapshot{
		Platforms:   platforms,
		Sentiment:   sentiment,
		WaitTimes:   waits,
		RefreshedAt: time.Now(),
		Partial:     partial,
	}
	s.mu.Unlock()
	return nil
}

func (s *Service) fetchPlatforms(ctx context.Context) ([]domain.PlatformReport, error) {
	resp, err := s.client.GetRaw(ctx, "/delivery/profitability")
	if err != nil {
		return []domain.PlatformReport{}, err
	}
	reports := []domain.PlatformReport{}
	for _, item := range normalize.Items(resp.Body, "platforms") {
		reports = append(reports, normalize.PlatformReport(item))
	}
	return reports, nil
}

func (s *Service) fetchSentiment(ctx context.Context) (domain.SentimentSummary, error) {
	resp, err := s.client.GetRaw(ctx, "/feedback/sentiment")
	if err != nil {
		return domain.SentimentSummary{}, err
	}
	return normalize.Sentiment(gjson.ParseBytes(resp.Body)), nil
}

func (s *Service) fetchWaitTimes(ctx context.Context) ([]domain.WaitEstimate, error) {
	resp, err := s.client.GetRaw(ctx, "/wait-times")
	if err != nil {
		return []domain.WaitEstimate{}, err
	}
	waits := []domain.WaitEstimate{}
	for _, item := range normalize.Items(resp.Body, "wait_times") {
		waits = append(waits, normalize.WaitEstimate(item))
	}
	return waits, nil
}
