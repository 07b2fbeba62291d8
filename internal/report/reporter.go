// Package report posts incident reports to the backend's error sink.
// Delivery is best-effort: failures are logged and swallowed, and a bounded
// worker pool drops reports rather than queue without limit.
package report

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/pkg/logger"
)

const reportPath = "/error-reports"

// Incident is one error report.
type Incident struct {
	Message   string    `json:"message"`
	Stack     string    `json:"stack,omitempty"`
	Path      string    `json:"path,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter sends incidents fire-and-forget.
type Reporter struct {
	client  *api.Client
	log     *logger.Logger
	slots   chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// New creates a reporter with up to maxInFlight concurrent sends;
// maxInFlight <= 0 selects 4.
func New(client *api.Client, maxInFlight int, log *logger.Logger) *Reporter {
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	if log == nil {
		log = logger.NewDefault("report")
	}
	return &Reporter{
		client: client,
		log:    log,
		slots:  make(chan struct{}, maxInFlight),
	}
}

// Report sends the incident in the background. It never blocks and never
// returns an error; saturated slots drop the report and count it.
func (r *Reporter) Report(ctx context.Context, incident Incident) {
	if incident.Timestamp.IsZero() {
		incident.Timestamp = time.Now().UTC()
	}

	select {
	case r.slots <- struct{}{}:
	default:
		r.dropped.Add(1)
		r.log.WithField("message", incident.Message).Debug("error report dropped, senders saturated")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.slots }()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := r.client.Post(sendCtx, reportPath, incident, nil); err != nil {
			r.log.WithError(err).Debug("error report not delivered")
		}
	}()
}

// ReportPanic recovers a panic at a goroutine top, reports it and logs it.
// Use as: defer reporter.ReportPanic(ctx, "board poll").
func (r *Reporter) ReportPanic(ctx context.Context, where string) {
	rec := recover()
	if rec == nil {
		return
	}
	r.log.WithField("where", where).Errorf("panic recovered: %v", rec)
	r.Report(ctx, Incident{
		Message:  fmt.Sprintf("panic in %s: %v", where, rec),
		Stack:    string(debug.Stack()),
		Severity: "panic",
	})
}

// Dropped reports how many incidents were discarded under saturation.
func (r *Reporter) Dropped() int64 { return r.dropped.Load() }

// Flush waits for in-flight sends, up to the context deadline.
func (r *Reporter) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
