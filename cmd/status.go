package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ftahirops/xraid/ui"
)

func newStatusCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ZFS pools and datasets, btrfs filesystems, md arrays and LVM volume groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := o.env().status.Collect(cmd.Context())
			return o.print(st, func() string { return ui.Status(st) })
		},
	}
}
