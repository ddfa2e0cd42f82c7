package notify

import (
	"context"

	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/metrics"
	"go.uber.org/zap"
)

type logSink struct{}

// Log writes notifications to the global logger
func Log() Sink {
	return logSink{}
}

func (logSink) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("level", string(n.Level)),
		logger.WithUserID(n.UserID),
		zap.String("op", n.Op),
		zap.String("target_id", n.TargetID),
	}
	if n.Level == LevelError {
		logger.Log.Warn(n.Text, fields...)
	} else {
		logger.Log.Info(n.Text, fields...)
	}
	metrics.RecordNotification("log", string(n.Level))
}
