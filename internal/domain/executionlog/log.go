// Package executionlog models the append-only audit trail of every code
// execution, regardless of activation mode.
package executionlog

import "time"

// Status mirrors ExecutionResult.status.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// ParentKind discriminates which (if any) activation dispatcher produced
// this log row. Exactly one of {None, Scheduled, Webhook, Service} holds,
// modeled as a tagged sum rather than three nullable foreign keys (spec §9).
type ParentKind string

const (
	ParentNone      ParentKind = ""
	ParentScheduled ParentKind = "scheduled"
	ParentWebhook   ParentKind = "webhook"
	ParentService   ParentKind = "service"
)

// Parent identifies the owning activation-dispatcher entity, if any.
type Parent struct {
	Kind ParentKind `json:"kind,omitempty"`
	ID   string     `json:"id,omitempty"`
}

// ResourceMetrics is the optional resource-usage snapshot captured around a
// one-shot execution (spec §3, §4.3).
type ResourceMetrics struct {
	CPUUserS     float64 `json:"cpu_user_s"`
	CPUSysS      float64 `json:"cpu_sys_s"`
	MemoryUsage  int64   `json:"memory_usage_bytes"`
	MemoryPeak   int64   `json:"memory_peak_bytes"`
	MemoryPct    float64 `json:"memory_percent"`
	BlockIORead  int64   `json:"block_io_read_bytes"`
	BlockIOWrite int64   `json:"block_io_write_bytes"`
	NetIORx      int64   `json:"net_io_rx_bytes"`
	NetIOTx      int64   `json:"net_io_tx_bytes"`
	PIDs         int     `json:"pids"`
	ExitCode     int     `json:"exit_code"`
}

// Log is a single append-only execution record.
type Log struct {
	ID              string           `json:"id"`
	Parent          Parent           `json:"parent"`
	Code            string           `json:"code"`
	Output          string           `json:"output,omitempty"`
	Error           string           `json:"error,omitempty"`
	SandboxID       string           `json:"sandbox_id,omitempty"`
	ExecutionTimeS  float64          `json:"execution_time_s"`
	StartedAt       time.Time        `json:"started_at"`
	Status          Status           `json:"status"`
	RequestData     map[string]any   `json:"request_data,omitempty"`
	ResponseData    map[string]any   `json:"response_data,omitempty"`
	Metrics         *ResourceMetrics `json:"metrics,omitempty"`
}
