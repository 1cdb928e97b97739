// Package batch fans a batch of scored reports across a bounded worker pool
// for comment generation, under one wall-clock deadline. The output always
// holds exactly one report per input, in input order.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edulytics/reportgen/internal/credential"
	"github.com/edulytics/reportgen/internal/domain"
	"github.com/edulytics/reportgen/internal/feedback"
	"github.com/edulytics/reportgen/pkg/events"
)

// Worker pool bounds. Too few wastes quota headroom, too many just queues
// on the credential windows.
const (
	MinWorkers     = 4
	MaxWorkers     = 15
	DefaultWorkers = 8
)

// DefaultDeadline bounds one batch end to end.
const DefaultDeadline = 40 * time.Minute

// Config shapes one batch run.
type Config struct {
	Workers  int
	Deadline time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventSink attaches a milestone sink.
func WithEventSink(sink events.Sink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithLogger overrides the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// Summary tallies one finished run. Invalid counts records that arrived
// without a student id; their comments still exist, under the placeholder.
type Summary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Generated int           `json:"generated"`
	Fallback  int           `json:"fallback"`
	Deadline  int           `json:"deadline"`
	Invalid   int           `json:"invalid"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Orchestrator drives comment generation for whole batches.
type Orchestrator struct {
	requester *feedback.Requester
	pool      *credential.Pool
	cfg       Config

	sink   events.Sink
	logger *slog.Logger
}

// NewOrchestrator builds an orchestrator. Worker counts outside the allowed
// band are clamped, a zero deadline takes the default.
func NewOrchestrator(requester *feedback.Requester, pool *credential.Pool, cfg Config, opts ...Option) *Orchestrator {
	switch {
	case cfg.Workers <= 0:
		cfg.Workers = DefaultWorkers
	case cfg.Workers < MinWorkers:
		cfg.Workers = MinWorkers
	case cfg.Workers > MaxWorkers:
		cfg.Workers = MaxWorkers
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	o := &Orchestrator{
		requester: requester,
		pool:      pool,
		cfg:       cfg,
		sink:      events.NoOpSink{},
		logger:    slog.Default().With("component", "batch"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run fills feedback on every report in place and returns the run summary.
// Reports past the deadline or an exhausted pool still come back, carrying
// the deterministic fallback comment.
func (o *Orchestrator) Run(ctx context.Context, reports []domain.StudentReport) Summary {
	runID := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	o.emit(ctx, events.New(events.TypeBatchStarted, runID, map[string]any{
		"total":   len(reports),
		"workers": o.cfg.Workers,
	}))
	o.logger.Info("batch started",
		"run_id", runID, "total", len(reports), "workers", o.cfg.Workers)

	sem := make(chan struct{}, o.cfg.Workers)
	var wg sync.WaitGroup
	var exhausted sync.Once

	for i := range reports {
		wg.Add(1)
		sem <- struct{}{}
		go func(report *domain.StudentReport) {
			defer wg.Done()
			defer func() { <-sem }()

			if o.pool.IsExhausted() {
				// Short-circuit: once no credential will recover, API
				// attempts for the rest of the batch are pointless.
				exhausted.Do(func() {
					o.emit(ctx, events.New(events.TypePoolExhausted, runID, o.pool.Stats()))
					o.logger.Warn("credential pool exhausted, remaining reports fall back",
						"run_id", runID)
				})
				o.fallback(report, domain.OutcomeFallback)
			} else if ctx.Err() != nil {
				o.fallback(report, domain.OutcomeDeadline)
			} else {
				o.requester.Fill(ctx, report)
			}

			o.emit(ctx, events.New(events.TypeRecordDone, runID, map[string]any{
				"student_id": report.StudentID,
				"outcome":    report.Outcome.String(),
			}))
		}(&reports[i])
	}
	wg.Wait()

	summary := Summary{RunID: runID, Total: len(reports), Elapsed: time.Since(start)}
	for i := range reports {
		switch reports[i].Outcome {
		case domain.OutcomeGenerated:
			summary.Generated++
		case domain.OutcomeDeadline:
			summary.Deadline++
		case domain.OutcomeInvalid:
			summary.Invalid++
		default:
			summary.Fallback++
		}
	}

	o.emit(ctx, events.New(events.TypePoolSnapshot, runID, o.pool.Stats()))
	o.emit(ctx, events.New(events.TypeBatchFinished, runID, summary))
	o.logger.Info("batch finished",
		"run_id", runID,
		"generated", summary.Generated,
		"fallback", summary.Fallback,
		"deadline", summary.Deadline,
		"elapsed", summary.Elapsed)
	return summary
}

func (o *Orchestrator) fallback(report *domain.StudentReport, outcome domain.FeedbackOutcome) {
	if report.StudentID == "" {
		report.StudentID = domain.PlaceholderStudentID
		report.Outcome = domain.OutcomeInvalid
	}
	report.Feedback = feedback.FallbackComment(report)
	if report.Outcome != domain.OutcomeInvalid {
		report.Outcome = outcome
	}
}

func (o *Orchestrator) emit(ctx context.Context, env events.Envelope) {
	if err := o.sink.Emit(ctx, env); err != nil {
		o.logger.Warn("event sink rejected envelope",
			"event_type", env.Type, "error", err)
	}
}
