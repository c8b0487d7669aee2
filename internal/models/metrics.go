package models

import "time"

// SystemMetrics is a point-in-time summary of process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBOpenConnections        int       `json:"db_open_connections"`
	DBInUseConnections       int       `json:"db_in_use_connections"`
	DecisionsIssued          uint64    `json:"decisions_issued"`
	DecisionRenderFailures   uint64    `json:"decision_render_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
