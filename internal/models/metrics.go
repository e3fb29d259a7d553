package models

import "time"

// SystemMetrics is the JSON view over process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ImportsTotal             uint64    `json:"imports_total"`
	FailedBatchesTotal       uint64    `json:"failed_batches_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
