package listeners

import (
	"context"
	"io"
	"log/slog"

	"github.com/INLOpen/qvd/hooks"
)

// ProgressLogger logs each completed save stage. Intermediate steps are
// logged at debug level.
type ProgressLogger struct {
	logger *slog.Logger
}

func NewProgressLogger(logger *slog.Logger) *ProgressLogger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ProgressLogger{logger: logger.With("component", "ProgressLogger")}
}

func (l *ProgressLogger) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	p, ok := event.Payload().(hooks.ProgressPayload)
	if !ok {
		return nil
	}
	level := slog.LevelDebug
	if p.Percent >= 100 {
		level = slog.LevelInfo
	}
	l.logger.Log(ctx, level, "Save progress", "stage", p.Stage, "current", p.Current, "total", p.Total, "percent", p.Percent)
	return nil
}

func (l *ProgressLogger) Priority() int { return 50 }
func (l *ProgressLogger) IsAsync() bool { return false }
