// Package probe provides observability implementations for the session
// service: structured logging and lightweight in-process metrics.
package probe

import (
	"context"
	"log/slog"

	"github.com/sanasol-ws/dualauth/internal/service"
)

// loggingObserver creates request-scoped logging probes
type loggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates an observer that logs operation events with
// slog. A nil logger falls back to slog.Default().
func NewLoggingObserver(logger *slog.Logger) service.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingObserver{logger: logger}
}

func (o *loggingObserver) OperationStarted(ctx context.Context, op string) (context.Context, service.Probe) {
	logger := o.logger.With("op", op)
	logger.LogAttrs(ctx, slog.LevelDebug, "operation started")
	return ctx, &loggingProbe{ctx: ctx, logger: logger}
}

// loggingProbe logs the events of one operation. It captures its context
// at creation so event methods stay context-free.
type loggingProbe struct {
	ctx     context.Context
	logger  *slog.Logger
	subject string
	failed  bool
}

func (p *loggingProbe) SubjectResolved(subject string) {
	p.subject = subject
	p.logger = p.logger.With("subject", subject)
}

func (p *loggingProbe) TokenEmitted(kind, tokenID string) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "token emitted",
		slog.String("kind", kind),
		slog.String("jti", tokenID))
}

func (p *loggingProbe) BypassApplied() {
	p.logger.LogAttrs(p.ctx, slog.LevelInfo, "self-signed bypass applied")
}

func (p *loggingProbe) PersistenceDegraded(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn, "registry write degraded",
		slog.String("error", err.Error()))
}

func (p *loggingProbe) Failed(err error) {
	p.failed = true
	p.logger.LogAttrs(p.ctx, slog.LevelWarn, "operation failed",
		slog.String("error", err.Error()))
}

func (p *loggingProbe) End() {
	if !p.failed {
		p.logger.LogAttrs(p.ctx, slog.LevelDebug, "operation completed")
	}
}
