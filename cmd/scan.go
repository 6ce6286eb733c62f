package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ftahirops/xraid/collector"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/ui"
)

func newScanCommand(o *options) *cobra.Command {
	var selectable bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List disks and mark the ones that are protected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			disks, err := o.env().inventory.Scan(cmd.Context())
			if err != nil {
				return err
			}
			if selectable {
				disks = collector.Selectable(disks)
			}
			return o.print(disks, func() string { return ui.Disks(disks) })
		},
	}
	cmd.Flags().BoolVar(&selectable, "selectable", false, "only list disks that may become pool members or cache")
	return cmd
}

func newAnalyzeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [DISK...]",
		Short: "Show the storage roles disks still carry",
		Long: `Analyze reports partitions, mounts, ZFS pools, btrfs filesystems, md arrays and
LVM volume groups found on each disk. It never writes anything. Without
arguments every selectable disk is analyzed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := o.env()
			disks, err := e.inventory.Scan(cmd.Context())
			if err != nil {
				return err
			}
			targets, err := pick(disks, args, true)
			if err != nil {
				return err
			}
			states := make([]model.DiskResidualState, 0, len(targets))
			for _, d := range targets {
				s, err := e.analyzer.Analyze(cmd.Context(), d)
				if err != nil {
					return err
				}
				states = append(states, s)
			}
			return o.print(states, func() string { return ui.Residual(states) })
		},
	}
}

// pick resolves names against the inventory. With no names it returns the
// selectable disks. System disks are refused unless allowSystem is set.
func pick(disks []model.Disk, names []string, allowSystem bool) ([]model.Disk, error) {
	if len(names) == 0 {
		return collector.Selectable(disks), nil
	}
	out := make([]model.Disk, 0, len(names))
	for _, n := range names {
		d, ok := collector.Find(disks, n)
		if !ok {
			return nil, fmt.Errorf("unknown disk %s", n)
		}
		if d.IsSystem && !allowSystem {
			return nil, fmt.Errorf("%s is a system disk (%s) and cannot be modified", d.Name, d.SystemReason)
		}
		out = append(out, d)
	}
	return out, nil
}
