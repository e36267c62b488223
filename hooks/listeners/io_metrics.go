package listeners

import (
	"context"
	"expvar"
	"io"
	"log/slog"
	"sync"

	"github.com/INLOpen/qvd/hooks"
)

var (
	// expvar names are global, so registration happens once per process.
	ioMetricsOnce     sync.Once
	totalBytesRead    *expvar.Int
	totalBytesWritten *expvar.Int
	loadEvents        *expvar.Int
	saveEvents        *expvar.Int
	failedEvents      *expvar.Int
)

func initIOMetrics() {
	ioMetricsOnce.Do(func() {
		totalBytesRead = expvar.NewInt("qvd_load_bytes_read_total")
		totalBytesWritten = expvar.NewInt("qvd_save_bytes_written_total")
		loadEvents = expvar.NewInt("qvd_load_total")
		saveEvents = expvar.NewInt("qvd_save_total")
		failedEvents = expvar.NewInt("qvd_failed_total")
		// Fraction of bytes read per byte written, useful to see how much
		// partial loads save.
		expvar.Publish("qvd_read_write_ratio", expvar.Func(func() interface{} {
			written := totalBytesWritten.Value()
			if written == 0 {
				return 0.0
			}
			return float64(totalBytesRead.Value()) / float64(written)
		}))
	})
}

// IOMetricsListener accumulates load and save volumes into expvar counters.
// Register it for EventPostLoad and EventPostSave.
type IOMetricsListener struct {
	logger *slog.Logger
}

func NewIOMetricsListener(logger *slog.Logger) *IOMetricsListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	initIOMetrics()
	return &IOMetricsListener{logger: logger.With("component", "IOMetricsListener")}
}

func (l *IOMetricsListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	switch p := event.Payload().(type) {
	case hooks.PostLoadPayload:
		loadEvents.Add(1)
		if p.Error != nil {
			failedEvents.Add(1)
			return nil
		}
		totalBytesRead.Add(p.BytesRead)
		l.logger.Debug("Load recorded", "path", p.Path, "bytes", p.BytesRead, "records", p.Records, "duration", p.Duration)
	case hooks.PostSavePayload:
		saveEvents.Add(1)
		if p.Error != nil {
			failedEvents.Add(1)
			return nil
		}
		totalBytesWritten.Add(p.BytesWritten)
		l.logger.Debug("Save recorded", "path", p.Path, "bytes", p.BytesWritten, "records", p.Records, "duration", p.Duration)
	}
	return nil
}

func (l *IOMetricsListener) Priority() int { return 100 }
func (l *IOMetricsListener) IsAsync() bool { return true }
