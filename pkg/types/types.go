package types

import "time"

// SetStats summarizes one extent set of a layer
type SetStats struct {
	Entries      int    `json:"entries"`
	Marked       int    `json:"marked"`
	CoveredBytes uint64 `json:"covered_bytes"`
}

// LayerStats summarizes both extent sets of a layer
type LayerStats struct {
	LayerID  string   `json:"layer_id"`
	ParentID string   `json:"parent_id,omitempty"`
	Priority uint32   `json:"priority"`
	Reads    SetStats `json:"reads"`
	Writes   SetStats `json:"writes"`
}

// OperationMetrics tracks metrics for a specific extent operation
type OperationMetrics struct {
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	TotalBytes    uint64        `json:"total_bytes"`
	Errors        int64         `json:"errors"`
	LastOperation time.Time     `json:"last_operation"`
	AvgDuration   time.Duration `json:"avg_duration"`
}
