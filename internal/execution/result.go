package execution

import "github.com/r3elabs/execforge/internal/domain/executionlog"

// Result is the ExecutionEngine's public contract result: `execute(...)
// -> ExecutionResult` from spec.md §4.3.
type Result struct {
	Success        bool
	Output         string
	Error          string
	SandboxID      string
	ExecutionTimeS float64
	TimedOut       bool
	ExitCode       int
	Metrics        executionlog.ResourceMetrics
}
