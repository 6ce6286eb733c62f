package model

// CapacityReport describes what a topology yields over a disk set.
type CapacityReport struct {
	Topology             Topology `json:"topology"`
	Disks                int      `json:"disks"`
	TotalRawBytes        uint64   `json:"total_raw_bytes"`
	UsableBytes          uint64   `json:"usable_bytes"`
	ToleratedFailures    int      `json:"tolerated_failures"`
	ToleranceDescription string   `json:"tolerance_description"`
	EfficiencyPercent    float64  `json:"efficiency_percent"`
	Warnings             []string `json:"warnings,omitempty"`
}
