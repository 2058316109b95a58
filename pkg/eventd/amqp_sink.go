package eventd

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
	"github.com/core-tools/hsu-nginx-agent/pkg/logging"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSinkOptions configures the AMQP event sink
type AMQPSinkOptions struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// AMQPSink publishes events as JSON messages to an AMQP exchange.
// Emit never fails the caller: publish errors are logged and dropped,
// events are best-effort notices.
type AMQPSink struct {
	options AMQPSinkOptions
	logger  logging.Logger
	mutex   sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

const amqpPublishTimeout = 5 * time.Second

// NewAMQPSink connects to the broker and declares the event exchange
func NewAMQPSink(options AMQPSinkOptions, logger logging.Logger) (*AMQPSink, error) {
	if options.Exchange == "" {
		options.Exchange = "agent-events"
	}

	conn, err := amqp.Dial(options.URL)
	if err != nil {
		return nil, errors.NewInternalError("failed to connect to AMQP broker", err).WithContext("url", options.URL)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.NewInternalError("failed to open AMQP channel", err)
	}

	err = channel.ExchangeDeclare(
		options.Exchange, // name
		"fanout",         // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, errors.NewInternalError("failed to declare AMQP exchange", err).WithContext("exchange", options.Exchange)
	}

	logger.Infof("AMQP event sink connected, exchange: %s", options.Exchange)

	return &AMQPSink{
		options: options,
		logger:  logger,
		conn:    conn,
		channel: channel,
	}, nil
}

func (s *AMQPSink) Emit(level string, message string) {
	event := newEvent(level, message)

	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Errorf("Failed to marshal event, uuid: %s, error: %v", event.UUID, err)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed || s.channel == nil {
		s.logger.Warnf("Dropping event on closed AMQP sink, uuid: %s", event.UUID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), amqpPublishTimeout)
	defer cancel()

	err = s.channel.PublishWithContext(
		ctx,
		s.options.Exchange,   // exchange
		s.options.RoutingKey, // routing key
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		s.logger.Errorf("Failed to publish event, uuid: %s, error: %v", event.UUID, err)
		return
	}

	s.logger.Debugf("Published event, uuid: %s, level: %s", event.UUID, event.Level)
}

// Close closes the AMQP channel and connection
func (s *AMQPSink) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
