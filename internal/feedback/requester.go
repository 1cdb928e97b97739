package feedback

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/edulytics/reportgen/internal/credential"
	"github.com/edulytics/reportgen/internal/domain"
	"github.com/edulytics/reportgen/internal/gemini"
)

// Config bounds the per-student generation loop.
type Config struct {
	// MaxAttempts caps credentialed API attempts per student. Empty-pool
	// waits do not count.
	MaxAttempts int

	// EmptyPoolBackoff is how long to wait when no credential has quota
	// headroom before scanning again.
	EmptyPoolBackoff time.Duration

	// TransientDelay is the pause after a transient or unclassified API
	// failure before the next attempt.
	TransientDelay time.Duration

	Model       string
	Temperature float64
}

// DefaultConfig returns the loop bounds used in production.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      30,
		EmptyPoolBackoff: 10 * time.Second,
		TransientDelay:   2 * time.Second,
	}
}

// Option configures a Requester.
type Option func(*Requester)

// WithSleep replaces the loop's delay primitive, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Requester) { r.sleep = sleep }
}

// WithLogger overrides the requester's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Requester) { r.logger = logger }
}

// Requester generates one comment per report. It never returns an error:
// when generation cannot complete it fills the report with the deterministic
// fallback and records why in the outcome.
type Requester struct {
	pool    *credential.Pool
	handler gemini.Handler
	prompts *PromptRenderer
	cfg     Config

	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// NewRequester wires a requester over the credential pool and API handler.
func NewRequester(pool *credential.Pool, handler gemini.Handler, prompts *PromptRenderer, cfg Config, opts ...Option) *Requester {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.EmptyPoolBackoff <= 0 {
		cfg.EmptyPoolBackoff = DefaultConfig().EmptyPoolBackoff
	}
	if cfg.TransientDelay <= 0 {
		cfg.TransientDelay = DefaultConfig().TransientDelay
	}
	r := &Requester{
		pool:    pool,
		handler: handler,
		prompts: prompts,
		cfg:     cfg,
		sleep:   sleepCtx,
		logger:  slog.Default().With("component", "feedback"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fill sets report.Feedback and report.Outcome. A missing student id is
// replaced with the placeholder so downstream joins never see an empty key,
// and the record keeps its invalid outcome: the comment is still produced,
// but the output must show the row arrived without an id.
func (r *Requester) Fill(ctx context.Context, report *domain.StudentReport) {
	if strings.TrimSpace(report.StudentID) == "" {
		report.StudentID = domain.PlaceholderStudentID
		report.Outcome = domain.OutcomeInvalid
	}

	text, outcome := r.generate(ctx, report)
	if text == "" {
		text = FallbackComment(report)
	}
	report.Feedback = text
	if report.Outcome != domain.OutcomeInvalid {
		report.Outcome = outcome
	}
}

// generate runs the bounded acquisition loop. It returns an empty string
// with the reason the loop gave up, or the generated text.
func (r *Requester) generate(ctx context.Context, report *domain.StudentReport) (string, domain.FeedbackOutcome) {
	prompt, err := r.prompts.Render(report)
	if err != nil {
		r.logger.Error("prompt render failed, using fallback",
			"student", report.StudentID, "error", err)
		return "", domain.OutcomeFallback
	}

	for attempt := 1; attempt <= r.cfg.MaxAttempts; {
		if err := ctx.Err(); err != nil {
			return "", domain.OutcomeDeadline
		}
		if r.pool.IsExhausted() {
			r.logger.Warn("credential pool exhausted, using fallback",
				"student", report.StudentID, "attempts", attempt-1)
			return "", domain.OutcomeFallback
		}

		lease := r.pool.Acquire()
		if lease == nil {
			// Quota windows will free up on their own; waiting here does
			// not consume an attempt.
			if err := r.sleep(ctx, r.cfg.EmptyPoolBackoff); err != nil {
				return "", domain.OutcomeDeadline
			}
			continue
		}

		resp, err := r.handler.Generate(ctx, &gemini.Request{
			Model:       r.cfg.Model,
			Prompt:      prompt,
			Temperature: r.cfg.Temperature,
			Credential: gemini.Credential{
				Secret:         lease.Secret,
				ServiceAccount: lease.Kind == credential.KindServiceAccount,
			},
		})
		if err == nil {
			r.pool.ReleaseSuccess(lease)
			if text := strings.TrimSpace(resp.Text); text != "" {
				return text, domain.OutcomeGenerated
			}
			// An empty candidate is useless; burn the attempt and move on.
			attempt++
			continue
		}

		attempt++
		switch gemini.Classify(err) {
		case gemini.ErrTypeInvalidCredential:
			r.pool.ReleaseInvalid(lease)
		case gemini.ErrTypeRateLimited:
			r.pool.ReleaseRateLimited(lease, gemini.RetryAfter(err))
		default:
			r.pool.ReleaseSuccess(lease)
			if ctx.Err() != nil {
				return "", domain.OutcomeDeadline
			}
			if err := r.sleep(ctx, r.cfg.TransientDelay); err != nil {
				return "", domain.OutcomeDeadline
			}
		}
	}

	r.logger.Warn("attempt budget spent, using fallback",
		"student", report.StudentID, "max_attempts", r.cfg.MaxAttempts)
	return "", domain.OutcomeFallback
}

// sleepCtx waits for d or the context, whichever ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
