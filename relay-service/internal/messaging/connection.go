package messaging

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Connect пытается подключиться к RabbitMQ с несколькими попытками.
func Connect(ctx context.Context, uri string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	if uri == "" {
		return nil, fmt.Errorf("RabbitMQ URI is empty")
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Connected to RabbitMQ")
			go watchConnection(conn, logger)
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
			zap.Duration("delay", retryDelay),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func watchConnection(conn *amqp.Connection, logger *zap.Logger) {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	if err := <-closed; err != nil {
		// Консьюмер завершится с ErrDeliveryClosed, main остановит сервис.
		logger.Error("RabbitMQ connection lost", zap.Error(err))
	}
}
