// Package events defines the envelope emitted at batch-processing milestones.
// Sinks are pluggable; the default discards, the CLI attaches a logging sink,
// and operators can fan out to their own transport.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the batch orchestrator.
const (
	TypeBatchStarted  = "batch.started"
	TypeRecordDone    = "batch.record_done"
	TypeBatchFinished = "batch.finished"
	TypePoolExhausted = "pool.exhausted"
	TypePoolSnapshot  = "pool.snapshot"
)

// Envelope wraps one milestone with enough metadata to correlate it to its
// run after the fact.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an envelope with a fresh id. A payload that fails to marshal is
// dropped rather than failing the milestone.
func New(eventType, runID string, payload any) Envelope {
	env := Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			env.Payload = raw
		}
	}
	return env
}

// Sink receives envelopes. Implementations must be safe for concurrent use
// and should not block the caller for long.
type Sink interface {
	Emit(ctx context.Context, env Envelope) error
}

// NoOpSink discards every envelope.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Envelope) error { return nil }

// LogSink writes envelopes to a slog logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink builds a sink over logger, defaulting to slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "events")}
}

func (s *LogSink) Emit(_ context.Context, env Envelope) error {
	s.logger.Info("event",
		"event_type", env.Type,
		"run_id", env.RunID,
		"payload", string(env.Payload))
	return nil
}
