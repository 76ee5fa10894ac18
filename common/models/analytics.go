package models

import "time"

// FlakyTest is one aggregated ledger bucket whose pass rate fell in the
// flaky band.
type FlakyTest struct {
	TestCaseID      string    `bson:"_id" json:"test_case_id"`
	TotalRuns       int64     `bson:"total_runs" json:"total_runs"`
	PassCount       int64     `bson:"pass_count" json:"pass_count"`
	PassRate        float64   `bson:"pass_rate" json:"pass_rate"`
	LatestExecution time.Time `bson:"latest_execution" json:"latest_execution"`
}

// StatusStats summarises executions sharing one status.
type StatusStats struct {
	Count         int64   `json:"count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// ExecutionStats maps status -> summary.
type ExecutionStats map[string]StatusStats

// Dashboard bundles the read-side summaries shown to a tenant.
type Dashboard struct {
	Hospital            string         `json:"hospital"`
	FlakyTests          []FlakyTest    `json:"flaky_tests"`
	SelfHealSuccessRate float64        `json:"self_heal_success_rate"`
	ExecutionStats      ExecutionStats `json:"execution_stats"`
	PendingApprovals    int            `json:"pending_approvals"`
	GeneratedAt         time.Time      `json:"generated_at"`
}
