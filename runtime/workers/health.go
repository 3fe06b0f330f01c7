package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"careerlink/contract"
	"careerlink/internal/metrics"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*HealthWorker)(nil)

// HealthWorker samples the server process (RSS, CPU) on a fixed interval and
// publishes the readings to the metrics registry and the log.
type HealthWorker struct {
	log      *slog.Logger
	interval time.Duration
}

func NewHealthWorker(log *slog.Logger, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, interval: interval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			memInfo, err := p.MemoryInfo()
			if err != nil {
				w.log.Error("Failed to collect memory stats", "err", err)
				continue
			}
			cpuPercent, err := p.CPUPercent()
			if err != nil {
				w.log.Error("Failed to collect cpu stats", "err", err)
				continue
			}

			metrics.ProcessRSSBytes.Set(float64(memInfo.RSS))
			metrics.ProcessCPUPercent.Set(cpuPercent)
			w.log.Debug("Process health",
				"rss_bytes", memInfo.RSS,
				"cpu_percent", cpuPercent)
		}
	}
}
