package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"nuam/internal"
	"nuam/internal/config"
	"nuam/internal/util"
)

// Publisher delivers catalog change notifications. Delivery is best effort:
// callers log a failure and move on.
type Publisher interface {
	Publish(ctx context.Context, event internal.ChangeEvent) error
	Close() error
}

// NewChangeEvent builds the notification for one upserted company.
func NewChangeEvent(action internal.ChangeAction, c internal.Company, now time.Time) internal.ChangeEvent {
	return internal.ChangeEvent{
		ID:          uuid.NewString(),
		Action:      action,
		OccurredAt:  now.UTC().Format(time.RFC3339),
		CompanyID:   c.ID,
		Ticker:      c.Ticker,
		Name:        c.Name,
		CountryCode: c.CountryCode,
		Sector:      c.Sector,
		Currency:    c.Currency,
		MarketCap:   c.MarketCap,
		Exchange:    c.Exchange,
		Source:      c.Source,
		ReportDate:  util.FormatDate(c.ReportDate),
	}
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// log-only publisher otherwise.
func NewPublisher(cfg config.Config, log *slog.Logger) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return &LogPublisher{log: log}
	}
	return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, time.Duration(cfg.KafkaFlushTimeoutMs)*time.Millisecond)
}

// publishBatchTimeout bounds how long a lone event waits in the writer before
// it is sent. kafka-go otherwise holds a partial batch for a full second.
const publishBatchTimeout = 5 * time.Millisecond

type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string, flushTimeout time.Duration) *KafkaPublisher {
	if flushTimeout <= 0 {
		flushTimeout = time.Second
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchSize:              1,
			BatchTimeout:           publishBatchTimeout,
			MaxAttempts:            1,
			WriteTimeout:           flushTimeout,
			AllowAutoTopicCreation: true,
			Transport:              &kafka.Transport{DialTimeout: flushTimeout},
		},
		timeout: flushTimeout,
	}
}

// Publish sends one event keyed by ticker and waits at most the flush
// timeout for the broker to accept it.
func (p *KafkaPublisher) Publish(ctx context.Context, event internal.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Ticker),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s %s: %w", event.Action, event.Ticker, err)
	}
	return nil
}

// Close flushes pending writes, giving up after the flush timeout.
func (p *KafkaPublisher) Close() error {
	done := make(chan error, 1)
	go func() { done <- p.writer.Close() }()
	select {
	case err := <-done:
		return err
	case <-time.After(p.timeout):
		return fmt.Errorf("close kafka writer: timed out after %s", p.timeout)
	}
}

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event internal.ChangeEvent) error {
	if p.log != nil {
		p.log.Debug("catalog change", "eventId", event.ID, "action", event.Action, "ticker", event.Ticker)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
