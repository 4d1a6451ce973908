package telemetry

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/process"
)

const report_process_stats = "process.stats"

// ReportProcessStats reports the resource usage of the current process, it
// is called once at the end of a run.
func ReportProcessStats(tel API) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	tel.ReportCount("process.allocated-mb", int64(memStats.TotalAlloc/1_000_000))

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		tel.ReportWarning(report_process_stats, err)
		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		tel.ReportWarning(report_process_stats, err)
	} else {
		tel.ReportCount("process.rss-mb", int64(mem.RSS/1_000_000))
	}

	cpu, err := proc.CPUPercent()
	if err != nil {
		tel.ReportWarning(report_process_stats, err)
		return
	}
	tel.ReportCount("process.cpu-percent", int64(cpu))
}
