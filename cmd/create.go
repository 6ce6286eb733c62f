package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ftahirops/xraid/engine"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/ui"
)

type cacheFlags struct {
	mode    string
	role    string
	devices []string
}

func (f *cacheFlags) register(cmd *cobra.Command, prefix string) {
	cmd.Flags().StringVar(&f.mode, prefix+"mode", "", "cache layout: single, dual or partitioned")
	cmd.Flags().StringVar(&f.role, prefix+"role", "", "role of a single cache device: cache or log")
	cmd.Flags().StringSliceVar(&f.devices, prefix+"device", nil, "cache device(s), repeat or comma separate")
}

// request returns nil when no cache was asked for.
func (f *cacheFlags) request() (*engine.CacheRequest, error) {
	if f.mode == "" && len(f.devices) == 0 {
		return nil, nil
	}
	mode := model.CacheMode(strings.ToLower(f.mode))
	if mode == "" {
		mode = model.CacheModeSingle
	}
	switch mode {
	case model.CacheModeSingle, model.CacheModeDual, model.CacheModePartitioned:
	default:
		return nil, fmt.Errorf("%w: unknown cache mode %q", engine.ErrPrecondition, f.mode)
	}
	return &engine.CacheRequest{
		Mode:    mode,
		Role:    model.CacheRole(strings.ToLower(f.role)),
		Devices: f.devices,
	}, nil
}

func newCreateCommand(o *options) *cobra.Command {
	var (
		topology   string
		disks      []string
		mountPoint string
		ashift     int
		cache      cacheFlags
	)
	cmd := &cobra.Command{
		Use:   "create NAME --topology T --disks D1,D2,...",
		Short: "Tear down the member disks and assemble a new pool",
		Example: `  xraid create tank --topology raidz2 --disks sdb,sdc,sdd,sde
  xraid create tank -t mirror --disks sdb,sdc --cache-mode partitioned --cache-device nvme1n1
  xraid create data -t btrfs-raid1 --disks sdb,sdc --mountpoint /srv/data`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := model.ParseTopology(topology)
			if err != nil {
				return fmt.Errorf("%w: %v", engine.ErrPrecondition, err)
			}
			creq, err := cache.request()
			if err != nil {
				return err
			}

			res, err := o.env().assembler.Create(cmd.Context(), engine.CreateRequest{
				Name:       args[0],
				Topology:   topo,
				Disks:      disks,
				MountPoint: mountPoint,
				Ashift:     ashift,
				Cache:      creq,
			})
			if res != nil && len(res.Report.Outcomes) > 0 {
				if perr := o.print(res, func() string {
					out := ui.Capacity(res.Capacity)
					if res.CachePlan != nil {
						out += ui.CachePlan(*res.CachePlan)
					}
					return out + ui.Report(res.Report)
				}); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&topology, "topology", "t", "", "stripe, mirror, raidz1-3, btrfs-raid0/1/10/5/6")
	cmd.Flags().StringSliceVarP(&disks, "disks", "d", nil, "member disks")
	cmd.Flags().StringVarP(&mountPoint, "mountpoint", "m", "", "ZFS: pool mountpoint, default /NAME. btrfs: directory created and mounted by this command; unmounted when empty")
	cmd.Flags().IntVar(&ashift, "ashift", 0, "zfs ashift; derived from sector size when 0")
	cache.register(cmd, "cache-")
	_ = cmd.MarkFlagRequired("topology")
	_ = cmd.MarkFlagRequired("disks")
	return cmd
}
