package engine

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftahirops/xraid/config"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
	"github.com/ftahirops/xraid/tools/toolstest"
)

type staticScanner []model.Disk

func (s staticScanner) Scan(context.Context) ([]model.Disk, error) { return s, nil }

type stateAnalyzer map[string]model.DiskResidualState

func (a stateAnalyzer) Analyze(_ context.Context, d model.Disk) (model.DiskResidualState, error) {
	s, ok := a[d.Name]
	if !ok {
		s = model.DiskResidualState{Disk: d.Name}
	}
	s.Refresh()
	return s, nil
}

func testInventory() staticScanner {
	return staticScanner{
		{Name: "sda", SizeBytes: tb, IsSystem: true, SystemReason: "mounted at /"},
		{Name: "sdb", SizeBytes: 2 * tb, SectorSize: 4096},
		{Name: "sdc", SizeBytes: 2 * tb, SectorSize: 4096},
		{Name: "sdd", SizeBytes: 2 * tb, SectorSize: 512},
		{Name: "sde", SizeBytes: 2 * tb, SectorSize: 512},
		{Name: "nvme1n1", SizeBytes: tb},
	}
}

func newAssembler(f *toolstest.FakeRunner, analyzer DiskAnalyzer, confirm Confirmer) *Assembler {
	cfg := config.Default()
	ts := tools.NewSet(f, "")
	td := NewTeardown(ts, nil, cfg.Wipe, quietLog())
	td.Sleep = func(time.Duration) {}
	cp := NewCachePlanner(ts, fakeMedia{}, testCacheConfig(), confirm, quietLog())
	cp.NodeExists = func(string) bool { return true }
	return &Assembler{
		Scanner:  testInventory(),
		Analyzer: analyzer,
		Teardown: td,
		Tools:    ts,
		Cache:    cp,
		Confirm:  confirm,
		Config:   cfg,
		MkdirAll: func(string, os.FileMode) error { return nil },
		Log:      quietLog(),
	}
}

func lastCalls(f *toolstest.FakeRunner, n int) []string {
	calls := f.Calls()
	if len(calls) < n {
		return calls
	}
	return calls[len(calls)-n:]
}

func TestCreateRejectsBeforeAnyCommand(t *testing.T) {
	cases := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"too few disks", CreateRequest{Name: "tank", Topology: model.TopologyRaidZ2, Disks: []string{"sdb", "sdc", "sdd"}}, ErrTooFewDisks},
		{"system disk", CreateRequest{Name: "tank", Topology: model.TopologyMirror, Disks: []string{"sda", "sdb"}}, ErrPrecondition},
		{"empty name", CreateRequest{Topology: model.TopologyMirror, Disks: []string{"sdb", "sdc"}}, ErrPrecondition},
		{"duplicate", CreateRequest{Name: "tank", Topology: model.TopologyMirror, Disks: []string{"sdb", "/dev/sdb"}}, ErrPrecondition},
		{"unknown disk", CreateRequest{Name: "tank", Topology: model.TopologyMirror, Disks: []string{"sdb", "sdq"}}, ErrPrecondition},
		{"unknown topology", CreateRequest{Name: "tank", Topology: "raid7", Disks: []string{"sdb", "sdc"}}, ErrPrecondition},
		{"cache is member", CreateRequest{Name: "tank", Topology: model.TopologyMirror, Disks: []string{"sdb", "sdc"},
			Cache: &CacheRequest{Mode: model.CacheModeSingle, Devices: []string{"sdc"}}}, ErrPrecondition},
		{"cache on btrfs", CreateRequest{Name: "data", Topology: model.TopologyBtrfsRaid1, Disks: []string{"sdb", "sdc"},
			Cache: &CacheRequest{Mode: model.CacheModeSingle, Devices: []string{"nvme1n1"}}}, ErrPrecondition},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := toolstest.New()
			_, err := newAssembler(f, stateAnalyzer{}, AutoConfirm).Create(context.Background(), c.req)
			if !errors.Is(err, c.want) {
				t.Fatalf("got %v, want %v", err, c.want)
			}
			if calls := f.Calls(); len(calls) != 0 {
				t.Fatalf("expected no commands, got %v", calls)
			}
		})
	}
}

func TestCreateDeclined(t *testing.T) {
	f := toolstest.New()
	var details []string
	confirm := ConfirmFunc(func(_ string, d []string) (bool, error) {
		details = d
		return false, nil
	})
	analyzer := stateAnalyzer{"sdb": {Disk: "sdb", ZFSPools: []string{"old"}}}
	_, err := newAssembler(f, analyzer, confirm).Create(context.Background(),
		CreateRequest{Name: "tank", Topology: model.TopologyMirror, Disks: []string{"sdb", "sdc"}})
	require.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, f.Calls())
	assert.Contains(t, details, "sdb: zfs pool old will be torn down")
	assert.Contains(t, details, "sdc: clean, signatures will be wiped")
}

func TestCreateRaidZ2(t *testing.T) {
	f := toolstest.New()
	analyzer := stateAnalyzer{"sdc": {Disk: "sdc", MDArrays: []string{"md127"}}}
	res, err := newAssembler(f, analyzer, AutoConfirm).Create(context.Background(), CreateRequest{
		Name:       "tank",
		Topology:   model.TopologyRaidZ2,
		Disks:      []string{"sdb", "sdc", "sdd", "sde"},
		MountPoint: "/tank",
	})
	require.NoError(t, err)
	assert.Equal(t, 4*tb, res.Capacity.UsableBytes)
	require.Len(t, res.States, 4)

	// roles are dissolved only where found, every member is wiped
	assert.True(t, f.Called("mdadm --stop /dev/md127"))
	for _, d := range []string{"sdb", "sdc", "sdd", "sde"} {
		assert.True(t, f.Called("wipefs -a -f /dev/"+d), d)
	}

	create := "zpool create -f -o ashift=12 -O compression=lz4 -O atime=off -m /tank tank raidz2 /dev/sdb /dev/sdc /dev/sdd /dev/sde"
	assert.True(t, f.Called(create), "calls: %v", f.Calls())
	assert.Less(t, f.Index("mdadm --stop"), f.Index("zpool create"))
	assert.Equal(t, model.OutcomeOK, res.Report.Outcomes[len(res.Report.Outcomes)-1].Status)
}

func TestCreateWithCache(t *testing.T) {
	f := toolstest.New()
	res, err := newAssembler(f, stateAnalyzer{}, AutoConfirm).Create(context.Background(), CreateRequest{
		Name:     "tank",
		Topology: model.TopologyMirror,
		Disks:    []string{"sdb", "sdc"},
		Cache:    &CacheRequest{Mode: model.CacheModeSingle, Role: model.CacheRoleWriteLog, Devices: []string{"nvme1n1"}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.CachePlan)
	assert.Equal(t, []string{
		"zpool create -f -o ashift=12 -O compression=lz4 -O atime=off tank mirror /dev/sdb /dev/sdc",
		"zpool add -f tank log /dev/nvme1n1",
	}, lastCalls(f, 2))
}

func TestCreateBtrfs(t *testing.T) {
	f := toolstest.New()
	_, err := newAssembler(f, stateAnalyzer{}, AutoConfirm).Create(context.Background(), CreateRequest{
		Name:       "data",
		Topology:   model.TopologyBtrfsRaid5,
		Disks:      []string{"sdb", "sdc", "sdd"},
		MountPoint: "/srv/data",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"mkfs.btrfs -f -L data -d raid5 -m raid1 /dev/sdb /dev/sdc /dev/sdd",
		"mount -t btrfs -o compress=zstd /dev/sdb /srv/data",
	}, lastCalls(f, 2))
}

func TestCreateWipesSignatureOnlyDisk(t *testing.T) {
	f := toolstest.New()
	analyzer := stateAnalyzer{"sdb": {Disk: "sdb", Signature: "linux_raid_member"}}
	var details []string
	confirm := ConfirmFunc(func(_ string, d []string) (bool, error) {
		details = d
		return true, nil
	})
	res, err := newAssembler(f, analyzer, confirm).Create(context.Background(),
		CreateRequest{Name: "tank", Topology: model.TopologyMirror, Disks: []string{"sdb", "sdc"}})
	require.NoError(t, err)
	assert.True(t, res.States[0].HasData)
	assert.Contains(t, details, "sdb: signature linux_raid_member will be torn down")

	create := f.Index("zpool create")
	require.GreaterOrEqual(t, create, 0)
	for _, cmd := range []string{
		"zpool labelclear -f /dev/sdb",
		"mdadm --zero-superblock /dev/sdb",
		"wipefs -a -f /dev/sdb",
		"wipefs -a -f /dev/sdc",
	} {
		i := f.Index(cmd)
		require.GreaterOrEqual(t, i, 0, "%s not run: %v", cmd, f.Calls())
		assert.Less(t, i, create, cmd)
	}
}

func TestCreateFailureReported(t *testing.T) {
	f := toolstest.New().Fail("zpool create", "invalid vdev specification")
	res, err := newAssembler(f, stateAnalyzer{}, AutoConfirm).Create(context.Background(),
		CreateRequest{Name: "tank", Topology: model.TopologyMirror, Disks: []string{"sdb", "sdc"}})
	require.Error(t, err)
	assert.Equal(t, 1, res.Report.Count(model.OutcomeFailed))
}

func TestVDevs(t *testing.T) {
	disks := func(names ...string) []model.Disk {
		out := make([]model.Disk, len(names))
		for i, n := range names {
			out[i] = model.Disk{Name: n}
		}
		return out
	}
	cases := []struct {
		name  string
		topo  model.Topology
		disks []model.Disk
		want  []tools.VDev
	}{
		{"mirror pairs", model.TopologyMirror, disks("sdb", "sdc", "sdd", "sde"), []tools.VDev{
			{Type: "mirror", Devices: []string{"/dev/sdb", "/dev/sdc"}},
			{Type: "mirror", Devices: []string{"/dev/sdd", "/dev/sde"}},
		}},
		{"odd mirror", model.TopologyMirror, disks("sdb", "sdc", "sdd"), []tools.VDev{
			{Type: "mirror", Devices: []string{"/dev/sdb", "/dev/sdc", "/dev/sdd"}},
		}},
		{"stripe", model.TopologyStripe, disks("sdb", "sdc"), []tools.VDev{
			{Devices: []string{"/dev/sdb"}},
			{Devices: []string{"/dev/sdc"}},
		}},
		{"raidz1", model.TopologyRaidZ1, disks("sdb", "sdc", "sdd"), []tools.VDev{
			{Type: "raidz1", Devices: []string{"/dev/sdb", "/dev/sdc", "/dev/sdd"}},
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if diff := cmp.Diff(c.want, VDevs(c.topo, c.disks)); diff != "" {
				t.Fatalf("vdevs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPoolSpecAshiftFromLargestSector(t *testing.T) {
	a := &Assembler{Config: config.Default()}
	a.Config.ZFS.Compression = ""
	a.Config.ZFS.Atime = ""
	spec := a.PoolSpec(CreateRequest{Name: "tank", Topology: model.TopologyMirror},
		[]model.Disk{{Name: "sdb", SectorSize: 512}, {Name: "sdc", SectorSize: 8192}})
	assert.Equal(t, 13, spec.Ashift)
	assert.Empty(t, spec.Properties)

	spec = a.PoolSpec(CreateRequest{Name: "tank", Topology: model.TopologyMirror, Ashift: 9}, nil)
	assert.Equal(t, 9, spec.Ashift)
}
