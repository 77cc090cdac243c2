package analytics

import "time"

// OutputSnapshot is one output's point-in-time listener summary.
type OutputSnapshot struct {
	OutputID  string         `json:"output_id"`
	Active    int            `json:"active"`
	Countries map[string]int `json:"countries"`
}

// Snapshot is the admin "stats" command's listener-side payload,
// reported alongside endpoint health.
type Snapshot struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	TotalActive int                       `json:"total_active"`
	Outputs     map[string]OutputSnapshot `json:"outputs"`
}
