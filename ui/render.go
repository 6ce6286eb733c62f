package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/util"
)

// Disks renders an inventory scan. System disks are listed with their reason.
func Disks(disks []model.Disk) string {
	t := newTable("DISK", "SIZE", "MODEL", "SERIAL", "SECTOR", "MEDIA", "PARTS", "STATUS")
	for _, d := range disks {
		status := okStyle.Render("available")
		if d.IsSystem {
			status = critStyle.Render("system") + " " + dimStyle.Render(d.SystemReason)
		}
		parts := "-"
		if d.HasPartitions {
			parts = "yes"
		}
		t.Row(d.Name, util.FormatBytes(d.SizeBytes), orDash(d.Model), orDash(d.Serial),
			strconv.FormatUint(uint64(d.SectorSize), 10), media(d), parts, status)
	}
	return section("Disks") + t.String() + "\n"
}

func media(d model.Disk) string {
	switch {
	case strings.HasPrefix(d.Name, "nvme"):
		return "nvme"
	case d.Rotational == nil:
		return "?"
	case *d.Rotational:
		return "hdd"
	default:
		return "ssd"
	}
}

// Capacity renders a capacity report.
func Capacity(rep model.CapacityReport) string {
	var sb strings.Builder
	sb.WriteString(section(fmt.Sprintf("Capacity: %s over %d disks", rep.Topology, rep.Disks)))
	sb.WriteString(renderKVBox([]kv{
		{"Raw", valueStyle.Render(util.FormatBytes(rep.TotalRawBytes))},
		{"Usable", valueStyle.Render(util.FormatBytes(rep.UsableBytes))},
		{"Efficiency", bar(rep.EfficiencyPercent, 20) + " " + fmt.Sprintf("%.1f%%", util.Round1(rep.EfficiencyPercent))},
		{"Tolerates", fmt.Sprintf("%d (%s)", rep.ToleratedFailures, rep.ToleranceDescription)},
	}))
	sb.WriteString(warnings(rep.Warnings))
	return sb.String()
}

// Residual renders analyzer results, one row per role.
func Residual(states []model.DiskResidualState) string {
	t := newTable("DISK", "ROLE", "PROBE ERRORS")
	for _, s := range states {
		roles := s.Roles()
		if len(roles) == 0 {
			roles = []string{okStyle.Render("clean")}
		}
		var probeErrs []string
		for name := range s.ProbeErrors {
			probeErrs = append(probeErrs, name)
		}
		sort.Strings(probeErrs)
		errs := dimStyle.Render(strings.Join(probeErrs, ", "))
		for i, r := range roles {
			name := s.Disk
			if i > 0 {
				name, errs = "", ""
			}
			t.Row(name, r, errs)
		}
	}
	return section("Existing configuration") + t.String() + "\n"
}

// Report renders the trace of a destructive batch and a one-line summary.
func Report(r *model.Report) string {
	if r == nil || len(r.Outcomes) == 0 {
		return dimStyle.Render("no steps executed") + "\n"
	}
	t := newTable("DISK", "PHASE", "STEP", "RESULT", "DETAIL")
	for _, o := range r.Outcomes {
		t.Row(o.Disk, o.Phase, o.Step, outcomeColor(o.Status).Render(string(o.Status)), truncate(o.Error, 60))
	}
	summary := fmt.Sprintf("%d ok, %d recovered, %d skipped, %d ignored, %d failed, %d need manual follow-up",
		r.Count(model.OutcomeOK), r.Count(model.OutcomeRecovered), r.Count(model.OutcomeSkipped),
		r.Count(model.OutcomeIgnored), r.Count(model.OutcomeFailed), r.Count(model.OutcomeManual))
	style := okStyle
	if !r.Clean() {
		style = critStyle
	}
	return section("Steps") + t.String() + "\n" + style.Render(summary) + "\n"
}

// CacheCandidates renders classified cache candidates.
func CacheCandidates(cands []model.CacheCandidate) string {
	t := newTable("DEVICE", "SIZE", "MODEL", "CLASS", "NOTE")
	for _, c := range cands {
		note := ""
		if !c.Class.Recommended() {
			note = warnStyle.Render("not recommended")
		}
		t.Row(c.Disk.Name, util.FormatBytes(c.Disk.SizeBytes), orDash(c.Disk.Model),
			classColor(c.Class).Render(string(c.Class)), note)
	}
	return section("Cache candidates") + t.String() + "\n"
}

// CachePlan renders a cache layout before it is applied.
func CachePlan(p model.CachePlan) string {
	var sb strings.Builder
	sb.WriteString(section("Cache plan: " + string(p.Mode)))
	t := newTable("DEVICE", "CLASS", "ROLE", "START", "SIZE")
	if p.Mode == model.CacheModePartitioned {
		class := ""
		if len(p.Devices) > 0 {
			class = string(p.Devices[0].Class)
		}
		for _, part := range p.Partitions {
			t.Row(part.Name, class, string(part.Role), util.FormatBytes(part.StartBytes), util.FormatBytes(part.SizeBytes))
		}
	} else {
		for _, d := range p.Devices {
			t.Row(d.Disk.Name, string(d.Class), string(d.Role), "-", util.FormatBytes(d.Disk.SizeBytes))
		}
	}
	sb.WriteString(t.String() + "\n")
	sb.WriteString(warnings(p.Warnings))
	return sb.String()
}

// Status renders every storage configuration present on the host.
func Status(s model.StorageStatus) string {
	var sb strings.Builder
	if len(s.Pools) > 0 {
		t := newTable("POOL", "HEALTH", "SIZE", "ALLOC", "FREE", "CAP")
		for _, p := range s.Pools {
			t.Row(p.Name, healthColor(p.Health).Render(p.Health), util.FormatBytes(p.SizeBytes),
				util.FormatBytes(p.AllocBytes), util.FormatBytes(p.FreeBytes), fmt.Sprintf("%.0f%%", p.CapacityPc))
		}
		sb.WriteString(section("ZFS pools") + t.String() + "\n")
	}
	for _, ps := range s.PoolStatus {
		t := newTable("DEVICE", "STATE", "READ", "WRITE", "CKSUM")
		for _, v := range ps.VDevs {
			t.Row(strings.Repeat("  ", v.Depth)+v.Name, healthColor(v.State).Render(v.State),
				strconv.FormatUint(v.Read, 10), strconv.FormatUint(v.Write, 10), strconv.FormatUint(v.Checksum, 10))
		}
		title := ps.Name + " " + healthColor(ps.State).Render(ps.State)
		if ps.Scan != "" {
			title += dimStyle.Render("  scan: " + ps.Scan)
		}
		sb.WriteString(section(title) + t.String() + "\n")
	}
	if len(s.Datasets) > 0 {
		sb.WriteString(Datasets(s.Datasets))
	}
	if len(s.Btrfs) > 0 {
		t := newTable("LABEL", "UUID", "DEVICES", "SIZE", "USED", "MOUNT")
		for _, fs := range s.Btrfs {
			size, used := "-", "-"
			if fs.TotalBytes > 0 {
				size, used = util.FormatBytes(fs.TotalBytes), util.FormatBytes(fs.UsedBytes)
			}
			t.Row(orDash(fs.Label), fs.UUID, strings.Join(fs.DevicePaths(), " "), size, used, orDash(fs.MountPoint))
		}
		sb.WriteString(section("Btrfs filesystems") + t.String() + "\n")
	}
	if len(s.MDArrays) > 0 {
		t := newTable("ARRAY", "LEVEL", "STATE", "DEVICES", "SYNC")
		for _, a := range s.MDArrays {
			t.Row(a.Name, orDash(a.Level), healthColor(a.State).Render(a.State),
				strings.Join(a.Devices, " "), fmt.Sprintf("%.1f%%", a.SyncPercent))
		}
		sb.WriteString(section("Software RAID") + t.String() + "\n")
	}
	if len(s.VolumeGroups) > 0 {
		t := newTable("VG", "SIZE", "FREE", "PVS", "LVS")
		for _, vg := range s.VolumeGroups {
			pvs := make([]string, 0, len(vg.PhysicalVolumes))
			for _, pv := range vg.PhysicalVolumes {
				pvs = append(pvs, pv.Name)
			}
			lvs := make([]string, 0, len(vg.LogicalVolumes))
			for _, lv := range vg.LogicalVolumes {
				lvs = append(lvs, lv.Name)
			}
			t.Row(vg.Name, util.FormatBytes(vg.SizeBytes), util.FormatBytes(vg.FreeBytes),
				strings.Join(pvs, " "), strings.Join(lvs, " "))
		}
		sb.WriteString(section("LVM volume groups") + t.String() + "\n")
	}
	if sb.Len() == 0 {
		sb.WriteString(dimStyle.Render("no storage configuration found") + "\n")
	}
	for _, u := range s.Unavailable {
		sb.WriteString(helpStyle.Render("unavailable: "+u) + "\n")
	}
	return sb.String()
}

// Datasets renders ZFS filesystems.
func Datasets(ds []model.Dataset) string {
	if len(ds) == 0 {
		return dimStyle.Render("no datasets") + "\n"
	}
	t := newTable("DATASET", "USED", "AVAIL", "MOUNT")
	for _, d := range ds {
		t.Row(d.Name, util.FormatBytes(d.UsedBytes), util.FormatBytes(d.AvailBytes), orDash(d.MountPoint))
	}
	return section("ZFS datasets") + t.String() + "\n"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
