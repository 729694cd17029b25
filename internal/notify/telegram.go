// Package notify уведомления врачам о записях и отменах
package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// MessageSender часть *bot.Bot, нужная уведомителю
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier пишет врачу в его Telegram-чат
type TelegramNotifier struct {
	sender    MessageSender
	providers service.ProviderDirectory
	logger    *zap.Logger
}

func NewTelegramNotifier(sender MessageSender, providers service.ProviderDirectory, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:    sender,
		providers: providers,
		logger:    logger,
	}
}

// NewBot создаёт клиента Bot API без запуска long polling
func NewBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, notification model.Notification) error {
	if notification.Slot == nil {
		return nil
	}

	provider, err := n.providers.Resolve(ctx, notification.Slot.ProviderID)
	if err != nil {
		return fmt.Errorf("resolve provider: %w", err)
	}
	if provider == nil || provider.TelegramChatID == 0 {
		n.logger.Debug("Provider has no telegram chat, skipping notification",
			zap.String("provider_id", notification.Slot.ProviderID),
		)
		return nil
	}

	_, err = n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: provider.TelegramChatID,
		Text:   FormatNotification(notification, provider.Location()),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	n.logger.Info("Notification sent",
		zap.String("kind", string(notification.Kind)),
		zap.String("provider_id", provider.ID),
		zap.String("slot_id", notification.Slot.ID.String()),
	)

	return nil
}
