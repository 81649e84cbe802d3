package queue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"olxmarket_api/pkg/logger"
)

type HandlerFunc func(ctx context.Context, body []byte) error

// Consumer pulls import tasks off the queue and runs them through the
// handler with bounded parallelism. A handler error nacks the delivery back
// onto the queue; the staged records keep their state so the retried run
// picks up where the failed one stopped. Handlers must swallow permanent
// failures (return nil) so a task that can never succeed is acked away
// instead of redelivered forever.
type Consumer struct {
	ch             *amqp.Channel
	log            logger.Logger
	queueName      string
	workerPoolSize int
}

func NewConsumer(ch *amqp.Channel, log logger.Logger, queueName string, poolSize int) *Consumer {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Consumer{
		ch:             ch,
		log:            log,
		queueName:      queueName,
		workerPoolSize: poolSize,
	}
}

func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	if err := c.ch.Qos(c.workerPoolSize, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}

	msgs, err := c.ch.Consume(
		c.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		var wg sync.WaitGroup
		semaphore := make(chan struct{}, c.workerPoolSize)

		for {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case msg, ok := <-msgs:
				if !ok {
					wg.Wait()
					return
				}

				wg.Add(1)
				semaphore <- struct{}{}

				go func(m amqp.Delivery) {
					defer wg.Done()
					defer func() { <-semaphore }()

					if err := handler(ctx, m.Body); err != nil {
						c.log.Log("task failed, requeueing: %v", err)
						if nerr := m.Nack(false, true); nerr != nil {
							c.log.Log("nack failed: %v", nerr)
						}
						return
					}
					if aerr := m.Ack(false); aerr != nil {
						c.log.Log("ack failed: %v", aerr)
					}
				}(msg)
			}
		}
	}()

	return nil
}
