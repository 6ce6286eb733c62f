package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftahirops/xraid/collector"
	"github.com/ftahirops/xraid/config"
	"github.com/ftahirops/xraid/engine"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
	"github.com/ftahirops/xraid/tools/toolstest"
)

const hostLsblk = `{"blockdevices":[
 {"name":"sda","size":500107862016,"model":"BOOT","phy-sec":512,"type":"disk","rota":false,"tran":"sata",
  "children":[{"name":"sda1","size":500106813440,"type":"part","mountpoint":"/"}]},
 {"name":"sdb","size":2000398934016,"model":"HDD","phy-sec":4096,"type":"disk","rota":true,"tran":"sata"},
 {"name":"sdc","size":2000398934016,"model":"HDD","phy-sec":4096,"type":"disk","rota":true,"tran":"sata"},
 {"name":"nvme1n1","size":1000204886016,"model":"NVME","phy-sec":512,"type":"disk","rota":false,"tran":"nvme"}
]}`

type noMedia struct{}

func (noMedia) Rotational(string) (bool, bool) { return false, false }
func (noMedia) NVMe(string) bool                { return false }

type harness struct {
	runner *toolstest.FakeRunner
	out    *bytes.Buffer
	opts   *options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "xraid"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xraid", "config.json"),
		[]byte(`{"wipe":{"edge_zero_mib":100,"settle_delay_sec":0}}`), 0o644))
	h := &harness{
		runner: toolstest.New().Stdout("lsblk", hostLsblk),
		out:    &bytes.Buffer{},
	}
	h.opts = &options{
		out: h.out,
		in:  strings.NewReader(""),
		newRunner: func(config.Config, *logrus.Entry) tools.Runner {
			return h.runner
		},
		procRoot: t.TempDir(),
		mounts: collector.StaticMounts{List: []collector.Mount{
			{Source: "/dev/sda1", MountPoint: "/", FSType: "ext4"},
		}},
		media:    noMedia{},
		stdinTTY: func() bool { return false },
	}
	return h
}

func (h *harness) run(args ...string) error {
	root := newRootCommand(h.opts)
	root.SetArgs(append(args, "--log-level", "error"))
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func TestVersionJSON(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("version", "-o", "json"))

	var got map[string]string
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	assert.Equal(t, Version, got["version"])
}

func TestUnknownOutputFormat(t *testing.T) {
	h := newHarness(t)
	err := h.run("version", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestCapacityFromSizes(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("capacity", "-t", "raidz1", "--sizes", "1000000000000,1000000000000,1000000000000", "-o", "json"))

	var rep model.CapacityReport
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &rep))
	assert.Equal(t, uint64(2e12), rep.UsableBytes)
	assert.Equal(t, 1, rep.ToleratedFailures)
	assert.Empty(t, h.runner.Calls(), "sizes alone must not touch the system")
}

func TestCapacityRejectsBadTopology(t *testing.T) {
	h := newHarness(t)
	err := h.run("capacity", "-t", "raid7", "--sizes", "1T,1T")
	assert.ErrorIs(t, err, engine.ErrPrecondition)
}

func TestScanMarksSystemDisk(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("scan", "-o", "json"))

	var disks []model.Disk
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &disks))
	require.Len(t, disks, 4)
	assert.Equal(t, "sda", disks[0].Name)
	assert.True(t, disks[0].IsSystem)
	assert.False(t, disks[1].IsSystem)
}

func TestScanSelectable(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("scan", "--selectable", "-o", "json"))

	var disks []model.Disk
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &disks))
	for _, d := range disks {
		assert.NotEqual(t, "sda", d.Name)
	}
}

func TestWipeRefusesSystemDisk(t *testing.T) {
	h := newHarness(t)
	err := h.run("wipe", "sda", "--yes")
	assert.ErrorIs(t, err, engine.ErrPrecondition)
	assert.False(t, h.runner.Called("wipefs"))
}

func TestWipeNeedsConfirmationWithoutTerminal(t *testing.T) {
	h := newHarness(t)
	err := h.run("wipe", "sdb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.False(t, h.runner.Called("wipefs"))
}

func TestWipeDeclined(t *testing.T) {
	h := newHarness(t)
	var details []string
	h.opts.confirm = engine.ConfirmFunc(func(_ string, d []string) (bool, error) {
		details = d
		return false, nil
	})
	err := h.run("wipe", "sdb")
	assert.ErrorIs(t, err, engine.ErrAborted)
	require.Len(t, details, 1)
	assert.Contains(t, details[0], "sdb (HDD)")
	assert.False(t, h.runner.Called("wipefs"))
}

func TestWipeConfirmed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("wipe", "sdb", "--yes", "-o", "json"))

	assert.True(t, h.runner.Called("wipefs -a -f /dev/sdb"))
	var res wipeResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	require.NotNil(t, res.Report)
	assert.True(t, res.Report.Clean())
}

func TestCreateMirror(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("create", "tank", "-t", "mirror", "--disks", "sdb,sdc", "--yes", "-o", "json"))

	assert.True(t, h.runner.Called("zpool create -f -o ashift=12"))
	var res engine.AssemblyResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	assert.Equal(t, uint64(2000398934016), res.Capacity.UsableBytes)
}

func TestCreateCacheNeedsZFS(t *testing.T) {
	h := newHarness(t)
	err := h.run("create", "data", "-t", "btrfs-raid1", "--disks", "sdb,sdc",
		"--cache-device", "nvme1n1", "--yes")
	assert.ErrorIs(t, err, engine.ErrPrecondition)
	assert.False(t, h.runner.Called("mkfs.btrfs"))
}

func TestCacheAddExcludesPoolMembers(t *testing.T) {
	h := newHarness(t)
	h.runner.Stdout("zpool status", `  pool: tank
 state: ONLINE
config:

	NAME          STATE     READ WRITE CKSUM
	tank          ONLINE       0     0     0
	  mirror-0    ONLINE       0     0     0
	    /dev/sdb1 ONLINE       0     0     0
	    /dev/sdc1 ONLINE       0     0     0

errors: No known data errors
`)
	err := h.run("cache", "add", "tank", "sdb", "--yes")
	assert.ErrorIs(t, err, engine.ErrPrecondition)
	assert.False(t, h.runner.Called("zpool add"))

	h.out.Reset()
	require.NoError(t, h.run("cache", "add", "tank", "--role", "log", "nvme1n1", "--yes"))
	assert.True(t, h.runner.Called("zpool add -f tank log /dev/nvme1n1"))
}

func TestStatusEmpty(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("status"))
	assert.Contains(t, h.out.String(), "no storage configuration found")
}

func TestDatasetCreate(t *testing.T) {
	h := newHarness(t)
	h.runner.
		Stdout("zpool list", "tank\tONLINE\t7998580686848\t1234\t7998580685614\t0\t1.00x\n").
		Stdout("zfs list", "tank\t1234\t7998580685614\t/tank\ntank/vm\t0\t7998580685614\t/srv/vm\n")
	require.NoError(t, h.run("dataset", "create", "tank/vm", "-p", "recordsize=64K", "--mountpoint", "/srv/vm", "-o", "json"))

	assert.True(t, h.runner.Called("zfs create -o recordsize=64K -o mountpoint=/srv/vm tank/vm"), "calls: %v", h.runner.Calls())
	var got model.Dataset
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	assert.Equal(t, "/srv/vm", got.MountPoint)
}

func TestDatasetCreateRejects(t *testing.T) {
	cases := map[string][]string{
		"no pool prefix": {"dataset", "create", "media"},
		"unknown pool":   {"dataset", "create", "backup/media"},
		"bad property":   {"dataset", "create", "tank/media", "-p", "compression"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.runner.Stdout("zpool list", "tank\tONLINE\t7998580686848\t1234\t7998580685614\t0\t1.00x\n")
			err := h.run(args...)
			assert.ErrorIs(t, err, engine.ErrPrecondition)
			assert.False(t, h.runner.Called("zfs create"))
		})
	}
}

func TestStatusListsDatasets(t *testing.T) {
	h := newHarness(t)
	h.runner.
		Stdout("zpool list", "tank\tONLINE\t7998580686848\t1234\t7998580685614\t0\t1.00x\n").
		Stdout("zfs list", "tank\t1234\t7998580685614\t/tank\ntank/media\t0\t7998580685614\t/tank/media\n")
	require.NoError(t, h.run("status", "-o", "json"))

	var st model.StorageStatus
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &st))
	require.Len(t, st.Datasets, 2)
	assert.Equal(t, "tank/media", st.Datasets[1].Name)
	assert.True(t, h.runner.Called("zfs list -H -p -t filesystem -o name,used,avail,mountpoint"))
}

func TestCreateMountpointUsage(t *testing.T) {
	f := newCreateCommand(newHarness(t).opts).Flags().Lookup("mountpoint")
	require.NotNil(t, f)
	assert.Contains(t, f.Usage, "ZFS: pool mountpoint")
	assert.Contains(t, f.Usage, "btrfs: directory created and mounted")
}
