package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/util"
)

// LVM drives the lvm2 utilities through their JSON reports.
type LVM struct {
	Runner Runner
}

type lvmReport struct {
	Report []struct {
		PV []lvmRow `json:"pv"`
		VG []lvmRow `json:"vg"`
		LV []lvmRow `json:"lv"`
	} `json:"report"`
}

type lvmRow struct {
	PVName string `json:"pv_name"`
	PVSize string `json:"pv_size"`
	VGName string `json:"vg_name"`
	VGSize string `json:"vg_size"`
	VGFree string `json:"vg_free"`
	LVName string `json:"lv_name"`
	LVSize string `json:"lv_size"`
}

func (l LVM) report(ctx context.Context, tool, options string) (lvmReport, error) {
	var rep lvmReport
	out, err := l.Runner.Run(ctx, tool, "--reportformat=json", "--units=b", "--options="+options)
	if err != nil {
		return rep, err
	}
	if err := json.Unmarshal(out, &rep); err != nil {
		return rep, fmt.Errorf("parse %s output: %w", tool, err)
	}
	return rep, nil
}

// PhysicalVolumes lists every PV with its VG.
func (l LVM) PhysicalVolumes(ctx context.Context) ([]model.PhysicalVolume, error) {
	rep, err := l.report(ctx, "pvs", "pv_name,vg_name,pv_size")
	if err != nil {
		return nil, err
	}
	var pvs []model.PhysicalVolume
	for _, r := range rep.Report {
		for _, row := range r.PV {
			size, _ := util.ParseSize(row.PVSize)
			pvs = append(pvs, model.PhysicalVolume{Name: row.PVName, VGName: row.VGName, SizeBytes: size})
		}
	}
	return pvs, nil
}

// VolumeGroups lists VGs with their PVs and LVs.
func (l LVM) VolumeGroups(ctx context.Context) ([]model.VolumeGroup, error) {
	rep, err := l.report(ctx, "vgs", "vg_name,vg_size,vg_free")
	if err != nil {
		return nil, err
	}
	var vgs []model.VolumeGroup
	index := map[string]int{}
	for _, r := range rep.Report {
		for _, row := range r.VG {
			size, _ := util.ParseSize(row.VGSize)
			free, _ := util.ParseSize(row.VGFree)
			index[row.VGName] = len(vgs)
			vgs = append(vgs, model.VolumeGroup{Name: row.VGName, SizeBytes: size, FreeBytes: free})
		}
	}

	pvs, err := l.PhysicalVolumes(ctx)
	if err != nil {
		return vgs, err
	}
	for _, pv := range pvs {
		if i, ok := index[pv.VGName]; ok {
			vgs[i].PhysicalVolumes = append(vgs[i].PhysicalVolumes, pv)
		}
	}

	lvRep, err := l.report(ctx, "lvs", "lv_name,vg_name,lv_size")
	if err != nil {
		return vgs, err
	}
	for _, r := range lvRep.Report {
		for _, row := range r.LV {
			i, ok := index[row.VGName]
			if !ok {
				continue
			}
			size, _ := util.ParseSize(row.LVSize)
			vgs[i].LogicalVolumes = append(vgs[i].LogicalVolumes, model.LogicalVolume{
				Name: row.LVName, VGName: row.VGName, SizeBytes: size,
			})
		}
	}
	return vgs, nil
}

// GroupMembers lists the PV names of vg.
func (l LVM) GroupMembers(ctx context.Context, vg string) ([]string, error) {
	out, err := l.Runner.Run(ctx, "pvs", "--noheadings", "-o", "pv_name", "-S", "vg_name="+vg)
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(out)), nil
}

// Deactivate deactivates every LV of a VG.
func (l LVM) Deactivate(ctx context.Context, vg string) error {
	_, err := l.Runner.Run(ctx, "vgchange", "-an", vg)
	return err
}

// Reduce removes a PV from its VG.
func (l LVM) Reduce(ctx context.Context, vg, pv string) error {
	_, err := l.Runner.Run(ctx, "vgreduce", vg, pv)
	return err
}

// RemoveGroup force-removes a VG and its LVs.
func (l LVM) RemoveGroup(ctx context.Context, vg string) error {
	_, err := l.Runner.Run(ctx, "vgremove", "-ff", "-y", vg)
	return err
}

// RemovePV force-removes the PV label.
func (l LVM) RemovePV(ctx context.Context, pv string) error {
	_, err := l.Runner.Run(ctx, "pvremove", "-ff", "-y", pv)
	return err
}
