package analytics

import "time"

// ListenerSession is one HTTP stream client's connection, open or
// closed, as reported to the external ingest endpoint.
type ListenerSession struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	IPHash     string     `json:"ip_hash"`
	UserAgent  string     `json:"user_agent"`
	ClientType string     `json:"client_type"`
	Country    string     `json:"country"`
	Region     string     `json:"region"`
	City       string     `json:"city"`
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	TotalBytes int64      `json:"total_bytes"`
}

// ListenerBucket aggregates listener counts over a fixed interval.
type ListenerBucket struct {
	Interval        string         `json:"interval"`
	BucketStart     time.Time      `json:"bucket_start"`
	ActivePeak      int            `json:"active_peak"`
	ListenerMinutes int            `json:"listener_minutes"`
	Countries       map[string]int `json:"countries"`
}

// IngestBatch is what gets posted to the analytics backend for one
// output on each flush tick.
type IngestBatch struct {
	OutputID string            `json:"output_id"`
	Sessions []ListenerSession `json:"sessions"`
	Buckets  []ListenerBucket  `json:"buckets"`
}
