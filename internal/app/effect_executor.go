// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/disputedesk/internal/core/effects"
	"github.com/example/disputedesk/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place post-commit I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor implements EffectExecutor with real I/O.
// System messages are persisted together with the issue, so they never reach it.
type DefaultEffectExecutor struct {
	notifier secondary.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
func NewEffectExecutor(notifier secondary.Notifier, logger *slog.Logger) *DefaultEffectExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultEffectExecutor{
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute processes a slice of effects, executing each in sequence.
// It keeps going after a failure and returns the first error.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	var firstErr error
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return firstErr
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.NotifyEffect:
		return e.executeNotify(ctx, typed)
	case effects.LogEffect:
		e.executeLog(ctx, typed)
		return nil
	case effects.SystemMessageEffect:
		return fmt.Errorf("system message for %s must be persisted with its issue", typed.IssueID)
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeNotify(ctx context.Context, eff effects.NotifyEffect) error {
	if e.notifier == nil {
		return nil
	}
	return e.notifier.Emit(ctx, secondary.NotificationEvent{
		Kind:       eff.Kind,
		IssueID:    eff.IssueID,
		OccurredAt: e.now().UTC(),
	})
}

func (e *DefaultEffectExecutor) executeLog(ctx context.Context, eff effects.LogEffect) {
	level := slog.LevelInfo
	switch eff.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	attrs := make([]any, 0, len(eff.Fields)*2)
	for k, v := range eff.Fields {
		attrs = append(attrs, k, v)
	}
	e.logger.Log(ctx, level, eff.Message, attrs...)
}

// splitEffects separates system messages, which commit with the issue, from post-commit effects.
func splitEffects(effs []effects.Effect) ([]effects.SystemMessageEffect, []effects.Effect) {
	var (
		messages []effects.SystemMessageEffect
		rest     []effects.Effect
	)
	for _, eff := range effs {
		if m, ok := eff.(effects.SystemMessageEffect); ok {
			messages = append(messages, m)
			continue
		}
		rest = append(rest, eff)
	}
	return messages, rest
}

// Ensure DefaultEffectExecutor implements the interface
var _ EffectExecutor = (*DefaultEffectExecutor)(nil)
