package collector

import (
	"context"

	"github.com/ftahirops/xraid/model"
)

// Probe inspects one disk for a single kind of residual storage role.
type Probe interface {
	Name() string
	Probe(ctx context.Context, disk model.Disk, state *model.DiskResidualState) error
}

// ProbeError ties a probe failure to the probe that produced it.
type ProbeError struct {
	Probe string
	Err   error
}

func (e ProbeError) Error() string { return e.Probe + ": " + e.Err.Error() }

func (e ProbeError) Unwrap() error { return e.Err }

// Registry holds the ordered probes run against each disk.
type Registry struct {
	probes []Probe
}

// NewRegistry creates a registry holding probes, in order.
func NewRegistry(probes ...Probe) *Registry {
	return &Registry{probes: probes}
}

// Names lists the registered probes in run order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.probes))
	for _, p := range r.probes {
		names = append(names, p.Name())
	}
	return names
}

// ProbeAll runs every probe; one failing probe never stops the others.
func (r *Registry) ProbeAll(ctx context.Context, disk model.Disk, state *model.DiskResidualState) []ProbeError {
	var errs []ProbeError
	for _, p := range r.probes {
		if err := p.Probe(ctx, disk, state); err != nil {
			errs = append(errs, ProbeError{Probe: p.Name(), Err: err})
		}
	}
	return errs
}
