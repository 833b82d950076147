package messaging

import (
	"context"
	"encoding/json"
	"time"

	"guard-relay/relay-service/internal/metrics"
	"guard-relay/shared/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// processTimeout - таймаут на обработку одного сообщения, включая получение токенов и отправку.
const processTimeout = 30 * time.Second

// MessageHandler отображает один push payload.
type MessageHandler interface {
	HandleBackgroundMessage(ctx context.Context, payload models.PushPayload) error
}

// Processor обрабатывает входящие сообщения.
type Processor struct {
	logger  *zap.Logger
	handler MessageHandler
}

func NewProcessor(logger *zap.Logger, handler MessageHandler) *Processor {
	return &Processor{
		logger:  logger.Named("processor"),
		handler: handler,
	}
}

// ProcessMessage acks handled deliveries. Malformed bodies and display failures
// are nacked without requeue.
func (p *Processor) ProcessMessage(ctx context.Context, d amqp.Delivery) {
	log := p.logger.With(zap.Uint64("delivery_tag", d.DeliveryTag))

	var payload models.PushPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		metrics.PushMessages.WithLabelValues("malformed").Inc()
		log.Error("Failed to decode push payload", zap.Error(err), zap.ByteString("body", d.Body))
		if ackErr := d.Nack(false, false); ackErr != nil {
			log.Error("Nack after decode error failed", zap.Error(ackErr))
		}
		return
	}

	processCtx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	if err := p.handler.HandleBackgroundMessage(processCtx, payload); err != nil {
		metrics.PushMessages.WithLabelValues("failed").Inc()
		log.Error("Failed to handle push payload", zap.Error(err), zap.String("user_id", payload.UserID.String()))
		if ackErr := d.Nack(false, false); ackErr != nil {
			log.Error("Nack after handler error failed", zap.Error(ackErr))
		}
		return
	}

	metrics.PushMessages.WithLabelValues("handled").Inc()
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("Ack failed", zap.Error(ackErr))
		return
	}
	log.Debug("Push payload handled")
}
