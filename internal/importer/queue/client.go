package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client owns the AMQP connection and one channel. The import queue is
// declared durable on connect so producers and consumers can start in any
// order.
type Client struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

func New(url, queueName string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring queue %s: %w", queueName, err)
	}

	return &Client{conn: conn, Channel: ch}, nil
}

func (c *Client) Close() error {
	if err := c.Channel.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
