package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

var perfMeter = Meter("recorder.perf_stats")
var cpuGauge, _ = perfMeter.Float64Gauge("cpu_usage")
var memoryGauge, _ = perfMeter.Int64Gauge("allocated_mb")
var goroutineGauge, _ = perfMeter.Int64Gauge("goroutine_count")

// InstrumentPerfStats samples process stats every interval until ctx is done.
// Long batch runs use it to spot leaking page buffers.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				cpuUsage, err := cpu.PercentWithContext(ctx, 0, false)
				if err == nil && len(cpuUsage) > 0 {
					cpuGauge.Record(ctx, cpuUsage[0])
				} else if err != nil {
					slog.Debug("failed to read cpu usage", "err", err)
				}

				allocated := int64(memStats.Alloc / 1_000_000)
				memoryGauge.Record(ctx, allocated)
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

				slog.Debug(
					"perf stats",
					"allocated_mb", allocated,
					"goroutines", runtime.NumGoroutine(),
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
