package messaging

import (
	"context"
	"fmt"
	"time"

	"guard-relay/relay-service/internal/display"
	"guard-relay/shared/utils"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var _ display.InvalidTokenSink = (*rabbitTokenDeletionPublisher)(nil)

// rabbitTokenDeletionPublisher отправляет отклоненные push-сервисами токены auth-сервису на удаление.
type rabbitTokenDeletionPublisher struct {
	conn      *amqp.Connection
	logger    *zap.Logger
	queueName string
}

func NewRabbitTokenDeletionPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (display.InvalidTokenSink, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection is nil")
	}
	p := &rabbitTokenDeletionPublisher{
		conn:      conn,
		logger:    logger.Named("token_deletion_publisher").With(zap.String("queue", queueName)),
		queueName: queueName,
	}
	if err := p.verifyQueue(); err != nil {
		return nil, fmt.Errorf("failed to verify queue %s on init: %w", queueName, err)
	}
	p.logger.Info("Token deletion publisher initialized")
	return p, nil
}

func (p *rabbitTokenDeletionPublisher) verifyQueue() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(p.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", p.queueName, err)
	}
	return nil
}

func (p *rabbitTokenDeletionPublisher) PublishTokenDeletion(ctx context.Context, token string) error {
	log := p.logger.With(zap.String("token", utils.TokenPrefix(token)))

	ch, err := p.conn.Channel()
	if err != nil {
		log.Error("Failed to open channel for publishing", zap.Error(err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         []byte(token),
		},
	)
	if err != nil {
		log.Error("Failed to publish token deletion", zap.Error(err))
		return fmt.Errorf("failed to publish token deletion message: %w", err)
	}
	log.Info("Token deletion published")
	return nil
}
