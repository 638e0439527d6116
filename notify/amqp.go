package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type amqpConn interface {
	channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

type dialedConn struct{ *amqp.Connection }

func (c dialedConn) channel() (amqpChannel, error) {
	ch, err := c.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (amqpConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return dialedConn{conn}, nil
}

// AMQPSink publishes events to a durable topic exchange using the event
// name as routing key.
type AMQPSink struct {
	url      string
	exchange string
	dial     func(url string) (amqpConn, error)

	mu   sync.Mutex
	conn amqpConn
	ch   amqpChannel
}

func DialAMQP(url, exchange string) (*AMQPSink, error) {
	s := &AMQPSink{url: url, exchange: exchange, dial: dialAMQP}
	if err := s.ensure(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// ensure reopens whatever the broker closed: the whole connection, or just
// the channel when the connection survived.
func (s *AMQPSink) ensure() error {
	if s.conn == nil || s.conn.IsClosed() {
		if s.conn != nil {
			logrus.Info("rabbitmq: connection closed, reconnecting")
		}
		conn, err := s.dial(s.url)
		if err != nil {
			return fmt.Errorf("rabbitmq dial: %w", err)
		}
		s.conn, s.ch = conn, nil
	}
	if s.ch != nil && !s.ch.IsClosed() {
		return nil
	}
	if s.ch != nil {
		logrus.Info("rabbitmq: channel closed, reopening")
	}

	ch, err := s.conn.channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		s.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	s.ch = ch
	return nil
}

func (s *AMQPSink) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return err
	}
	return s.ch.PublishWithContext(ctx,
		s.exchange, // exchange
		ev.Name,    // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    ev.Timestamp,
			Type:         ev.Name,
			Body:         body,
		},
	)
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
