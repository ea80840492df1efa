package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// maxStoredErrors caps the in-memory error list so long relay runs do
// not grow it without bound.
const maxStoredErrors = 100

// EventProducer publishes relay audit events to Kafka using an
// asynchronous producer. Delivery failures never block or fail the
// relay itself; they are logged and surfaced on Close.
type EventProducer struct {
	producer sarama.AsyncProducer
	topic    string
	logger   zerolog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
	closed    bool
	closeMu   sync.Mutex

	errors   []error
	errorsMu sync.Mutex
}

// ProducerConfig holds configuration for the audit event producer
type ProducerConfig struct {
	Brokers         []string
	Topic           string
	Logger          zerolog.Logger
	MaxMessageBytes int // default 1MB
	MaxRetries      int // default 5
}

// NewEventProducer creates an async producer with snappy compression
// and idempotent at-least-once delivery. Events are partitioned by
// account phone so each account's audit trail stays ordered.
func NewEventProducer(cfg ProducerConfig) (*EventProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers specified")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 1000000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Net.MaxOpenRequests = 1 // required for idempotent producer
	config.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	config.Producer.Retry.Max = cfg.MaxRetries
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.ClientID = "teleclonex-audit-producer"
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := &EventProducer{
		producer: producer,
		topic:    cfg.Topic,
		logger:   cfg.Logger.With().Str("component", "kafka_producer").Logger(),
		errors:   make([]error, 0),
	}

	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	p.logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka audit producer initialized")

	return p, nil
}

// Published queues one relay event for delivery.
func (p *EventProducer) Published(ctx context.Context, event domain.RelayEvent) error {
	if event.AccountPhone == "" {
		return fmt.Errorf("account phone is required")
	}

	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return fmt.Errorf("producer is closed")
	}
	p.closeMu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled before sending: %w", ctx.Err())
	default:
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal relay event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.AccountPhone),
		Value:     sarama.ByteEncoder(value),
		Timestamp: event.PublishedAt,
	}

	select {
	case p.producer.Input() <- msg:
		p.logger.Debug().
			Str("target", string(event.Target)).
			Int("message_id", event.MessageID).
			Msg("Relay event queued for Kafka")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while sending event: %w", ctx.Err())
	}
}

func (p *EventProducer) handleSuccesses() {
	defer p.wg.Done()
	for msg := range p.producer.Successes() {
		p.logger.Debug().
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Event sent to Kafka")
	}
}

func (p *EventProducer) handleErrors() {
	defer p.wg.Done()
	for producerErr := range p.producer.Errors() {
		p.logger.Error().
			Err(producerErr.Err).
			Str("topic", producerErr.Msg.Topic).
			Msg("Failed to send event to Kafka")

		p.errorsMu.Lock()
		if len(p.errors) < maxStoredErrors {
			p.errors = append(p.errors, producerErr.Err)
		} else if len(p.errors) == maxStoredErrors {
			p.logger.Warn().
				Int("max_errors", maxStoredErrors).
				Msg("Maximum stored errors reached, subsequent errors will be dropped")
			p.errors = append(p.errors, fmt.Errorf("max errors limit reached, subsequent errors dropped"))
		}
		p.errorsMu.Unlock()
	}
}

// Close flushes pending events and shuts down the producer. Idempotent.
func (p *EventProducer) Close() error {
	return p.CloseWithTimeout(10 * time.Second)
}

// CloseWithTimeout closes the producer, waiting at most timeout for
// pending events to flush and handler goroutines to finish.
func (p *EventProducer) CloseWithTimeout(timeout time.Duration) error {
	p.closeOnce.Do(func() {
		p.logger.Info().Dur("timeout", timeout).Msg("Closing Kafka producer")

		p.closeMu.Lock()
		p.closed = true
		p.closeMu.Unlock()

		var errs []error
		if err := p.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close failed: %w", err))
		}

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			errs = append(errs, fmt.Errorf("close timeout after %s", timeout))
		}

		p.errorsMu.Lock()
		errorCount := len(p.errors)
		p.errorsMu.Unlock()
		if errorCount > 0 {
			errs = append(errs, fmt.Errorf("producer had %d send errors during operation", errorCount))
		}

		p.closeMu.Lock()
		if len(errs) == 1 {
			p.closeErr = errs[0]
		} else if len(errs) > 1 {
			msg := "multiple errors during close:"
			for i, err := range errs {
				msg += fmt.Sprintf(" [%d] %v;", i+1, err)
			}
			p.closeErr = fmt.Errorf("%s", msg)
		}
		p.closeMu.Unlock()

		if p.closeErr != nil {
			p.logger.Error().Err(p.closeErr).Msg("Kafka producer closed with errors")
		} else {
			p.logger.Info().Msg("Kafka producer closed")
		}
	})

	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	return p.closeErr
}

var _ domain.EventSink = (*EventProducer)(nil)

// NoopSink is used when no brokers are configured.
type NoopSink struct{}

func (NoopSink) Published(ctx context.Context, event domain.RelayEvent) error { return nil }
func (NoopSink) Close() error                                                 { return nil }

var _ domain.EventSink = NoopSink{}
