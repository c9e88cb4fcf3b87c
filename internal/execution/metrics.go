package execution

import (
	"github.com/docker/docker/api/types"

	"github.com/r3elabs/execforge/internal/domain/executionlog"
)

// diffMetrics reports cumulative counters (CPU, block/net IO) as the delta
// between pre- and post-execution snapshots, and instantaneous values
// (memory) from the post snapshot, per spec.md §4.3 step e.
func diffMetrics(pre, post types.StatsJSON, exitCode int) executionlog.ResourceMetrics {
	var blockRead, blockWrite uint64
	for _, entry := range post.BlkioStats.IoServiceBytesRecursive {
		switch entry.Op {
		case "Read":
			blockRead += entry.Value
		case "Write":
			blockWrite += entry.Value
		}
	}
	var preBlockRead, preBlockWrite uint64
	for _, entry := range pre.BlkioStats.IoServiceBytesRecursive {
		switch entry.Op {
		case "Read":
			preBlockRead += entry.Value
		case "Write":
			preBlockWrite += entry.Value
		}
	}

	var netRx, netTx, preNetRx, preNetTx uint64
	for _, n := range post.Networks {
		netRx += n.RxBytes
		netTx += n.TxBytes
	}
	for _, n := range pre.Networks {
		preNetRx += n.RxBytes
		preNetTx += n.TxBytes
	}

	memUsage := post.MemoryStats.Usage
	memLimit := post.MemoryStats.Limit
	var memPct float64
	if memLimit > 0 {
		memPct = float64(memUsage) / float64(memLimit) * 100
	}

	return executionlog.ResourceMetrics{
		CPUUserS:     cpuSeconds(post.CPUStats.CPUUsage.UsageInUsermode) - cpuSeconds(pre.CPUStats.CPUUsage.UsageInUsermode),
		CPUSysS:      cpuSeconds(post.CPUStats.CPUUsage.UsageInKernelmode) - cpuSeconds(pre.CPUStats.CPUUsage.UsageInKernelmode),
		MemoryUsage:  int64(memUsage),
		MemoryPeak:   int64(post.MemoryStats.MaxUsage),
		MemoryPct:    memPct,
		BlockIORead:  int64(subtractSaturating(blockRead, preBlockRead)),
		BlockIOWrite: int64(subtractSaturating(blockWrite, preBlockWrite)),
		NetIORx:      int64(subtractSaturating(netRx, preNetRx)),
		NetIOTx:      int64(subtractSaturating(netTx, preNetTx)),
		PIDs:         int(post.PidsStats.Current),
		ExitCode:     exitCode,
	}
}

func cpuSeconds(nanos uint64) float64 {
	return float64(nanos) / 1e9
}

func subtractSaturating(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
