package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ftahirops/xraid/engine"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/ui"
	"github.com/ftahirops/xraid/util"
)

func newCapacityCommand(o *options) *cobra.Command {
	var (
		topology string
		sizes    []string
	)
	cmd := &cobra.Command{
		Use:   "capacity --topology T (DISK... | --sizes 2T,2T,...)",
		Short: "Compute usable space and fault tolerance of a layout",
		Example: `  xraid capacity --topology raidz2 sdb sdc sdd sde
  xraid capacity --topology mirror --sizes 1T,1T,3T`,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := model.ParseTopology(topology)
			if err != nil {
				return fmt.Errorf("%w: %v", engine.ErrPrecondition, err)
			}

			var raw []uint64
			switch {
			case len(sizes) > 0 && len(args) > 0:
				return fmt.Errorf("give either disks or --sizes, not both")
			case len(sizes) > 0:
				for _, s := range sizes {
					b, err := util.ParseSize(s)
					if err != nil {
						return err
					}
					raw = append(raw, b)
				}
			default:
				disks, err := o.env().inventory.Scan(cmd.Context())
				if err != nil {
					return err
				}
				members, err := pick(disks, args, true)
				if err != nil {
					return err
				}
				for _, d := range members {
					raw = append(raw, d.SizeBytes)
				}
			}

			rep, err := engine.ComputeSizes(topo, raw)
			if err != nil {
				return err
			}
			return o.print(rep, func() string { return ui.Capacity(rep) })
		},
	}
	cmd.Flags().StringVarP(&topology, "topology", "t", "", "stripe, mirror, raidz1-3, btrfs-raid0/1/10/5/6")
	cmd.Flags().StringSliceVar(&sizes, "sizes", nil, "member sizes instead of disks, e.g. 2T,2T,4T")
	_ = cmd.MarkFlagRequired("topology")
	return cmd
}
