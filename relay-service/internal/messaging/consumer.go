package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrDeliveryClosed is returned by Start when the broker closed the delivery channel,
// usually because the connection was lost.
var ErrDeliveryClosed = errors.New("delivery channel closed")

// Consumer читает push payload из очереди пулом воркеров.
type Consumer struct {
	conn        *amqp.Connection
	logger      *zap.Logger
	queueName   string
	concurrency int
	processor   *Processor
	stopChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewConsumer(conn *amqp.Connection, logger *zap.Logger, queueName string, concurrency int, processor *Processor) (*Consumer, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection is nil")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{
		conn:        conn,
		logger:      logger.Named("consumer"),
		queueName:   queueName,
		concurrency: concurrency,
		processor:   processor,
		stopChannel: make(chan struct{}),
	}, nil
}

// Start блокируется до вызова Stop и ждет завершения воркеров. Если брокер закрыл
// канал доставки, Start возвращает ErrDeliveryClosed.
func (c *Consumer) Start() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", c.queueName, err)
	}
	c.logger.Info("Queue declared", zap.String("queue", q.Name))

	// Ограничиваем количество сообщений в обработке
	if err := ch.Qos(c.concurrency, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"relay-consumer", // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started", zap.Int("concurrency", c.concurrency))
	return c.run(msgs)
}

func (c *Consumer) run(msgs <-chan amqp.Delivery) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go c.worker(ctx, i, msgs)
	}
	workersDone := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(workersDone)
	}()

	select {
	case <-c.stopChannel:
		c.logger.Info("Stop requested, cancelling workers")
		cancel()
		<-workersDone
		c.logger.Info("All consumer workers stopped")
		return nil
	case <-workersDone:
		c.logger.Error("All consumer workers exited, delivery channel closed")
		return ErrDeliveryClosed
	}
}

func (c *Consumer) worker(ctx context.Context, workerID int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()
	logger := c.logger.With(zap.Int("worker_id", workerID))
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				logger.Info("Delivery channel closed, worker exiting")
				return
			}
			c.processor.ProcessMessage(ctx, d)
		}
	}
}

// Stop is safe to call more than once.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping consumer")
		close(c.stopChannel)
	})
}
