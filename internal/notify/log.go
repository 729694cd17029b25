package notify

import (
	"context"

	"github.com/Freeeeeet/turnos/internal/model"
	"go.uber.org/zap"
)

// LogNotifier только пишет уведомление в лог; используется без TELEGRAM_TOKEN
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, notification model.Notification) error {
	fields := []zap.Field{zap.String("kind", string(notification.Kind))}
	if notification.Slot != nil {
		fields = append(fields,
			zap.String("slot_id", notification.Slot.ID.String()),
			zap.String("provider_id", notification.Slot.ProviderID),
			zap.Time("start_time", notification.Slot.StartTime),
		)
	}
	if notification.Subject != nil {
		fields = append(fields, zap.String("subject", notification.Subject.DisplayName()))
	}

	n.logger.Info("Notification", fields...)
	return nil
}
