package service

import (
	"context"
)

// Operation names reported to observers.
const (
	OpNewSession     = "new_session"
	OpRefreshSession = "refresh_session"
	OpChildSession   = "child_session"
	OpAuthorize      = "authorize"
	OpExchange       = "exchange"
	OpDeleteSession  = "delete_session"
	OpProfile        = "profile"
)

// Observer creates request-scoped probes for exchange operations.
//
// The observer captures execution context when an operation starts and
// returns a probe scoped to that one operation, so probe methods need no
// context argument.
type Observer interface {
	// OperationStarted creates a probe for one state-machine operation.
	OperationStarted(ctx context.Context, op string) (context.Context, Probe)
}

// Probe receives the events of a single operation. End terminates the
// observation and is typically deferred.
type Probe interface {
	// SubjectResolved reports the subject the operation settled on.
	SubjectResolved(subject string)

	// TokenEmitted reports one emitted token by kind and jti.
	TokenEmitted(kind string, tokenID string)

	// BypassApplied reports that the self-signed substitution path ran.
	BypassApplied()

	// PersistenceDegraded reports a non-critical registry write failure;
	// the operation still succeeds.
	PersistenceDegraded(err error)

	// Failed reports the operation's terminal error.
	Failed(err error)

	// End terminates the observation.
	End()
}

type noOpObserver struct{}

func (noOpObserver) OperationStarted(ctx context.Context, _ string) (context.Context, Probe) {
	return ctx, NoOpProbe()
}

type noOpProbe struct{}

func (noOpProbe) SubjectResolved(string)      {}
func (noOpProbe) TokenEmitted(string, string) {}
func (noOpProbe) BypassApplied()              {}
func (noOpProbe) PersistenceDegraded(error)   {}
func (noOpProbe) Failed(error)                {}
func (noOpProbe) End()                        {}

// NoOpObserver returns an observer that ignores everything
func NoOpObserver() Observer {
	return noOpObserver{}
}

// NoOpProbe returns a probe that ignores everything
func NoOpProbe() Probe {
	return noOpProbe{}
}
