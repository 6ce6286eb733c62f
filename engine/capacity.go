package engine

import (
	"fmt"

	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/util"
)

// disparityRatio is max/min member size above which a warning is raised.
const disparityRatio = 1.5

// Compute derives usable capacity and fault tolerance of topology over disks.
// It is pure: nothing is read from or written to the host.
func Compute(topology model.Topology, disks []model.Disk) (model.CapacityReport, error) {
	sizes := make([]uint64, len(disks))
	for i, d := range disks {
		sizes[i] = d.SizeBytes
	}
	return ComputeSizes(topology, sizes)
}

// ComputeSizes is Compute over raw member sizes.
func ComputeSizes(topology model.Topology, sizes []uint64) (model.CapacityReport, error) {
	if !topology.Valid() {
		return model.CapacityReport{}, fmt.Errorf("%w: unknown topology %q", ErrPrecondition, topology)
	}
	n := len(sizes)
	if n == 0 || n < topology.MinDisks() {
		return model.CapacityReport{}, fmt.Errorf("%w: %s needs at least %d disks, got %d",
			ErrTooFewDisks, topology, topology.MinDisks(), n)
	}

	smallest, largest, total := sizes[0], sizes[0], uint64(0)
	for _, s := range sizes {
		total += s
		if s < smallest {
			smallest = s
		}
		if s > largest {
			largest = s
		}
	}

	rep := model.CapacityReport{
		Topology:          topology,
		Disks:             n,
		TotalRawBytes:     total,
		ToleratedFailures: topology.ToleratedFailures(n),
	}
	pairs := uint64(n / 2)

	switch {
	case topology.IsStripe():
		rep.UsableBytes = total
		rep.EfficiencyPercent = 100
		rep.ToleranceDescription = "none: any disk failure loses the pool"
	case topology.IsMirror():
		rep.UsableBytes = smallest * pairs
		rep.EfficiencyPercent = float64(pairs) / float64(n) * 100
		rep.ToleranceDescription = fmt.Sprintf("up to %d disks, at most one per mirrored pair", rep.ToleratedFailures)
	case topology == model.TopologyBtrfsRaid10:
		rep.UsableBytes = smallest * pairs
		rep.EfficiencyPercent = float64(pairs) / float64(n) * 100
		rep.ToleranceDescription = "one failure per mirrored pair"
	default:
		k := topology.Parity()
		rep.UsableBytes = smallest * uint64(n-k)
		rep.EfficiencyPercent = util.Percent(rep.UsableBytes, total)
		rep.ToleranceDescription = fmt.Sprintf("any %d disk(s)", k)
	}

	if float64(largest) > float64(smallest)*disparityRatio {
		msg := fmt.Sprintf("disk sizes differ widely (%s to %s)", util.FormatBytes(smallest), util.FormatBytes(largest))
		if !topology.IsStripe() {
			msg += fmt.Sprintf("; only %s of each disk is used", util.FormatBytes(smallest))
		}
		rep.Warnings = append(rep.Warnings, msg)
	}
	return rep, nil
}
