package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ftahirops/xraid/util"
)

const lsblkColumns = "NAME,SIZE,MODEL,SERIAL,PHY-SEC,TYPE,MOUNTPOINT,FSTYPE,ROTA,TRAN"

// BlockDevice is one node of the lsblk tree.
type BlockDevice struct {
	Name       string        `json:"name"`
	Size       Size          `json:"size"`
	Model      string        `json:"model"`
	Serial     string        `json:"serial"`
	PhySec     Size          `json:"phy-sec"`
	Type       string        `json:"type"`
	MountPoint string        `json:"mountpoint"`
	FSType     string        `json:"fstype"`
	Rota       Flag          `json:"rota"`
	Tran       string        `json:"tran"`
	Children   []BlockDevice `json:"children"`
}

// Walk calls fn for every descendant of d (not d itself), depth first.
func (d BlockDevice) Walk(fn func(BlockDevice)) {
	for _, c := range d.Children {
		fn(c)
		c.Walk(fn)
	}
}

// Size accepts a JSON number, a numeric string or a human size string.
type Size uint64

func (s *Size) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		if strings.TrimSpace(str) == "" {
			*s = 0
			return nil
		}
		v, err := util.ParseSize(str)
		if err != nil {
			return err
		}
		*s = Size(v)
		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("size %s: %w", b, err)
	}
	*s = Size(v)
	return nil
}

// Flag accepts true/false, 0/1 or "0"/"1". A missing value stays unknown.
type Flag struct {
	Set   bool
	Value bool
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch strings.Trim(string(bytes.TrimSpace(b)), `"`) {
	case "null", "":
		*f = Flag{}
	case "true", "1":
		*f = Flag{Set: true, Value: true}
	case "false", "0":
		*f = Flag{Set: true, Value: false}
	default:
		return fmt.Errorf("invalid flag %s", b)
	}
	return nil
}

// Ptr returns the flag as *bool, nil when unknown.
func (f Flag) Ptr() *bool {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

type lsblkOutput struct {
	BlockDevices []BlockDevice `json:"blockdevices"`
}

// ParseLsblk decodes lsblk --json output.
func ParseLsblk(out []byte) ([]BlockDevice, error) {
	var parsed lsblkOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse lsblk output: %w", err)
	}
	return parsed.BlockDevices, nil
}

// Lsblk enumerates block devices.
type Lsblk struct {
	Runner Runner
}

// List returns the device tree; with devices set, only those subtrees.
func (l Lsblk) List(ctx context.Context, devices ...string) ([]BlockDevice, error) {
	args := []string{"--json", "--bytes", "--output", lsblkColumns}
	args = append(args, devices...)
	out, err := l.Runner.Run(ctx, "lsblk", args...)
	if err != nil {
		return nil, err
	}
	return ParseLsblk(out)
}
