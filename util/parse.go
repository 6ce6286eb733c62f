package util

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Lines splits command output into lines, dropping the trailing newline.
func Lines(out []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// ParseKeyValueLines parses "KEY=VALUE", "key: value" or "key value" lines.
// The first separator found wins; blank lines are skipped.
func ParseKeyValueLines(lines []string) map[string]string {
	m := make(map[string]string)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var key, val string
		if idx := strings.IndexAny(line, "=:"); idx >= 0 {
			key = strings.TrimSpace(line[:idx])
			val = strings.TrimSpace(line[idx+1:])
		} else {
			fields := strings.Fields(line)
			key = fields[0]
			if len(fields) >= 2 {
				val = strings.Join(fields[1:], " ")
			}
		}
		if key != "" {
			m[key] = val
		}
	}
	return m
}

// ParseFloat64 parses a string to float64, returning 0 on error.
// A trailing "%" or "x" (as printed by zpool) is ignored.
func ParseFloat64(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "%x")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// ParseSize parses a human size as printed by lsblk, zpool and btrfs.
// Suffixes are binary (K=1024): "10.9T", "512M", "1.82TiB", "931,5G" and bare
// byte counts are all accepted.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, fmt.Errorf("empty size")
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	// comma as decimal separator (locale-dependent lsblk output)
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	num := strings.TrimRight(s, "BbiI ")
	unit := ""
	if num != "" {
		last := num[len(num)-1]
		if (last < '0' || last > '9') && last != '.' {
			unit = strings.ToUpper(string(last))
			num = strings.TrimSpace(num[:len(num)-1])
		}
	}
	switch unit {
	case "":
		return humanize.ParseBytes(num)
	case "K", "M", "G", "T", "P", "E":
		return humanize.ParseBytes(num + " " + unit + "iB")
	}
	return 0, fmt.Errorf("unknown size unit in %q", s)
}

// FormatBytes renders a byte count with IEC units.
func FormatBytes(b uint64) string {
	return humanize.IBytes(b)
}
