package model

import "time"

// RunStatus represents the current state of a stage run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Stage names.
const (
	StageHomepages = "homepages"
	StageProfiles  = "profiles"
	StageFeatures  = "features"
)

// Run records one execution of a stage over an input file.
type Run struct {
	ID         string     `json:"id"`
	Stage      string     `json:"stage"`
	Input      string     `json:"input"`
	Output     string     `json:"output"`
	Status     RunStatus  `json:"status"`
	Stats      RunStats   `json:"stats"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunStats tallies per-row outcomes of a run.
type RunStats struct {
	Rows        int     `json:"rows"`
	Written     int     `json:"written"`
	Skipped     int     `json:"skipped"`
	Failed      int     `json:"failed"`
	TotalTokens int64   `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
	DurationMs  int64   `json:"duration_ms"`
}
