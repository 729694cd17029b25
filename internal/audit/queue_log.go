package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/goccy/go-json"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// QueueLog публикует события в durable-очередь RabbitMQ с подтверждениями
type QueueLog struct {
	mu      sync.Mutex
	channel *amqp091.Channel
	queue   string
	logger  *zap.Logger
}

// Dial подключение к брокеру
func Dial(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return conn, nil
}

func NewQueueLog(conn *amqp091.Connection, queue string, logger *zap.Logger) (*QueueLog, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := channel.Confirm(false); err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &QueueLog{
		channel: channel,
		queue:   queue,
		logger:  logger,
	}, nil
}

func (l *QueueLog) Record(ctx context.Context, event model.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	message := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         string(event.Action),
	}

	l.mu.Lock()
	confirm, err := l.channel.PublishWithDeferredConfirmWithContext(ctx, "", l.queue, false, false, message)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish audit event to %s: %w", l.queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("audit event %s was nacked by broker", event.ID)
	}

	l.logger.Debug("Audit event published",
		zap.String("queue", l.queue),
		zap.String("action", string(event.Action)),
	)

	return nil
}

func (l *QueueLog) Close() error {
	return l.channel.Close()
}
