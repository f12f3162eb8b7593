package probe

import (
	"context"

	"github.com/sanasol-ws/dualauth/internal/service"
)

// MultiObserver fans operation events out to several observers.
type MultiObserver []service.Observer

// NewMultiObserver combines observers; nil entries are skipped
func NewMultiObserver(observers ...service.Observer) MultiObserver {
	var multi MultiObserver
	for _, o := range observers {
		if o != nil {
			multi = append(multi, o)
		}
	}
	return multi
}

// OperationStarted implements service.Observer
func (m MultiObserver) OperationStarted(ctx context.Context, op string) (context.Context, service.Probe) {
	probes := make(multiProbe, 0, len(m))
	for _, o := range m {
		var probe service.Probe
		ctx, probe = o.OperationStarted(ctx, op)
		probes = append(probes, probe)
	}
	return ctx, probes
}

type multiProbe []service.Probe

func (m multiProbe) SubjectResolved(subject string) {
	for _, p := range m {
		p.SubjectResolved(subject)
	}
}

func (m multiProbe) TokenEmitted(kind, tokenID string) {
	for _, p := range m {
		p.TokenEmitted(kind, tokenID)
	}
}

func (m multiProbe) BypassApplied() {
	for _, p := range m {
		p.BypassApplied()
	}
}

func (m multiProbe) PersistenceDegraded(err error) {
	for _, p := range m {
		p.PersistenceDegraded(err)
	}
}

func (m multiProbe) Failed(err error) {
	for _, p := range m {
		p.Failed(err)
	}
}

func (m multiProbe) End() {
	for _, p := range m {
		p.End()
	}
}
