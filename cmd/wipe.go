package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ftahirops/xraid/engine"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/ui"
)

type wipeResult struct {
	States []model.DiskResidualState `json:"states"`
	Report *model.Report             `json:"report"`
}

func newWipeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "wipe DISK...",
		Short: "Tear down every storage role on disks and wipe their signatures",
		Long: `Wipe unmounts partitions, destroys ZFS pools, unmounts btrfs filesystems,
stops md arrays, removes LVM volume groups and finally erases every signature
and partition table. Disks are processed one after another. Steps that fail
are retried forcefully once; the report lists what needs manual follow-up.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e := o.env()
			disks, err := e.inventory.Scan(ctx)
			if err != nil {
				return err
			}
			targets, err := pick(disks, args, false)
			if err != nil {
				return fmt.Errorf("%w: %v", engine.ErrPrecondition, err)
			}

			res := wipeResult{Report: &model.Report{}}
			details := make([]string, 0, len(targets))
			for _, d := range targets {
				s, err := e.analyzer.Analyze(ctx, d)
				if err != nil {
					return err
				}
				res.States = append(res.States, s)
				roles := "no known roles, signatures only"
				if s.HasData {
					roles = strings.Join(s.Roles(), ", ")
				}
				details = append(details, fmt.Sprintf("%s (%s): %s", d.Name, d.Model, roles))
			}

			ok, err := o.confirmer().Confirm(fmt.Sprintf("Wipe %d disk(s)? All data on them will be destroyed.", len(targets)), details)
			if err != nil {
				return err
			}
			if !ok {
				return engine.ErrAborted
			}

			report, terr := e.teardown.RunAll(ctx, targets, res.States)
			res.Report = report
			if err := o.print(res, func() string { return ui.Report(report) }); err != nil {
				return err
			}
			if terr != nil {
				return fmt.Errorf("wipe incomplete: %w", terr)
			}
			return nil
		},
	}
}
