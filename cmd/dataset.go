package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ftahirops/xraid/engine"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/ui"
)

func newDatasetCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "List and create ZFS datasets",
	}
	cmd.AddCommand(newDatasetListCommand(o), newDatasetCreateCommand(o))
	return cmd
}

func newDatasetListCommand(o *options) *cobra.Command {
	var pool string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ZFS filesystems with their usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, _, err := o.env().tools.ZFS.Datasets(cmd.Context())
			if err != nil {
				return err
			}
			if pool != "" {
				var kept []model.Dataset
				for _, d := range ds {
					if d.Pool() == pool {
						kept = append(kept, d)
					}
				}
				ds = kept
			}
			return o.print(ds, func() string { return ui.Datasets(ds) })
		},
	}
	cmd.Flags().StringVar(&pool, "pool", "", "only datasets of this pool")
	return cmd
}

func newDatasetCreateCommand(o *options) *cobra.Command {
	var (
		props      []string
		mountPoint string
	)
	cmd := &cobra.Command{
		Use:   "create POOL/NAME",
		Short: "Create a ZFS filesystem in an existing pool",
		Example: `  xraid dataset create tank/media
  xraid dataset create tank/vm -p recordsize=64K --mountpoint /srv/vm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]
			if mountPoint != "" {
				props = append(props, "mountpoint="+mountPoint)
			}
			e := o.env()
			if err := checkDataset(ctx, e, name, props); err != nil {
				return err
			}
			if err := e.tools.ZFS.CreateDataset(ctx, name, props); err != nil {
				return fmt.Errorf("create dataset %s: %w", name, err)
			}

			ds, _, err := e.tools.ZFS.Datasets(ctx)
			if err != nil {
				return err
			}
			for _, d := range ds {
				if d.Name == name {
					return o.print(d, func() string { return ui.Datasets([]model.Dataset{d}) })
				}
			}
			return fmt.Errorf("dataset %s not listed after create", name)
		},
	}
	cmd.Flags().StringArrayVarP(&props, "property", "p", nil, "zfs property as key=value, repeatable")
	cmd.Flags().StringVar(&mountPoint, "mountpoint", "", "mount point (inherited from the parent when empty)")
	return cmd
}

// checkDataset rejects malformed names and properties and datasets whose
// pool is not imported.
func checkDataset(ctx context.Context, e *env, name string, props []string) error {
	pool, child, ok := strings.Cut(name, "/")
	if !ok || pool == "" || child == "" || strings.HasSuffix(name, "/") || strings.ContainsAny(name, " @#") {
		return fmt.Errorf("%w: dataset name %q must look like POOL/NAME", engine.ErrPrecondition, name)
	}
	for _, p := range props {
		if k, _, ok := strings.Cut(p, "="); !ok || k == "" {
			return fmt.Errorf("%w: property %q is not key=value", engine.ErrPrecondition, p)
		}
	}
	pools, _, err := e.tools.ZFS.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: list pools: %v", engine.ErrPrecondition, err)
	}
	for _, p := range pools {
		if p.Name == pool {
			return nil
		}
	}
	return fmt.Errorf("%w: no zfs pool named %s", engine.ErrPrecondition, pool)
}
