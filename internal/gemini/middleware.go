package gemini

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// WithLogging logs each call with duration and outcome classification.
// Secrets never reach the log; only derived metadata does.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gemini")

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next.Generate(ctx, req)
			elapsed := time.Since(start)

			if err != nil {
				logger.Warn("generate failed",
					"model", req.Model,
					"service_account", req.Credential.ServiceAccount,
					"error_type", string(Classify(err)),
					"duration", elapsed,
					"error", err)
				return nil, err
			}
			logger.Debug("generate ok",
				"model", req.Model,
				"finish_reason", resp.FinishReason,
				"total_tokens", resp.Usage.TotalTokens,
				"duration", elapsed)
			return resp, nil
		})
	}
}

// WithPacing smooths the request rate below the upstream quota so bursts
// from a full worker pool do not trip 429s that the credential windows
// would otherwise permit.
func WithPacing(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next.Generate(ctx, req)
		})
	}
}

// WithAttemptTimeout bounds each call independently of the batch deadline.
func WithAttemptTimeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Generate(ctx, req)
		})
	}
}
