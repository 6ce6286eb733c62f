package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ftahirops/xraid/engine"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/ui"
)

type cacheResult struct {
	Plan   model.CachePlan `json:"plan"`
	Report *model.Report   `json:"report,omitempty"`
}

func newCacheCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and attach ZFS cache and log devices",
	}
	cmd.AddCommand(newCacheListCommand(o), newCacheAddCommand(o))
	return cmd
}

func newCacheListCommand(o *options) *cobra.Command {
	var pool string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Classify the disks that could serve as cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := o.env()
			disks, err := e.inventory.Scan(cmd.Context())
			if err != nil {
				return err
			}
			var members []string
			if pool != "" {
				if members, err = poolMembers(cmd.Context(), e, pool); err != nil {
					return err
				}
			}
			cands := e.cache.Classify(engine.Candidates(disks, members))
			return o.print(cands, func() string { return ui.CacheCandidates(cands) })
		},
	}
	cmd.Flags().StringVar(&pool, "pool", "", "exclude the members of this pool")
	return cmd
}

func newCacheAddCommand(o *options) *cobra.Command {
	var flags cacheFlags
	cmd := &cobra.Command{
		Use:   "add POOL DEVICE...",
		Short: "Attach cache and log devices to an existing pool",
		Example: `  xraid cache add tank nvme1n1
  xraid cache add tank --mode dual nvme1n1 nvme2n1
  xraid cache add tank --mode partitioned nvme1n1`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool := args[0]
			flags.devices = args[1:]
			req, err := flags.request()
			if err != nil {
				return err
			}

			e := o.env()
			members, err := poolMembers(ctx, e, pool)
			if err != nil {
				return err
			}
			disks, err := e.inventory.Scan(ctx)
			if err != nil {
				return err
			}
			res := cacheResult{}
			res.Plan, err = e.cache.Plan(*req, engine.Candidates(disks, members))
			if err != nil {
				return err
			}

			// partitioned plans are confirmed by the planner before repartitioning
			if req.Mode != model.CacheModePartitioned {
				details := make([]string, 0, len(res.Plan.Devices))
				for _, d := range res.Plan.Devices {
					details = append(details, fmt.Sprintf("%s (%s, %s) as %s", d.Disk.Name, d.Disk.Model, d.Class, d.Role))
				}
				ok, err := o.confirmer().Confirm(fmt.Sprintf("Attach %d device(s) to pool %s? Existing labels will be overwritten.", len(details), pool), details)
				if err != nil {
					return err
				}
				if !ok {
					return engine.ErrAborted
				}
			}

			res.Report, err = e.cache.Apply(ctx, pool, res.Plan)
			if perr := o.print(res, func() string {
				return ui.CachePlan(res.Plan) + ui.Report(res.Report)
			}); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&flags.mode, "mode", "", "cache layout: single, dual or partitioned")
	cmd.Flags().StringVar(&flags.role, "role", "", "role of a single cache device: cache or log")
	return cmd
}

// poolMembers returns the whole-disk names backing pool.
func poolMembers(ctx context.Context, e *env, pool string) ([]string, error) {
	pools, _, err := e.tools.ZFS.Status(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %s: %v", engine.ErrPrecondition, pool, err)
	}
	var out []string
	for _, p := range pools {
		if p.Name != pool {
			continue
		}
		for _, dev := range p.Devices() {
			out = append(out, model.ParentDisk(model.KernelName(dev)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: no zfs pool named %s", engine.ErrPrecondition, pool)
}
