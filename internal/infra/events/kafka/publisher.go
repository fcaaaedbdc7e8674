package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	domain "github.com/bryanwahyu/webtaxon/internal/domain/classification"
	"github.com/bryanwahyu/webtaxon/internal/domain/taxonomy"
)

// EventType tags every message this publisher writes.
const EventType = "classification.completed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the message value.
type Event struct {
	Type      string                 `json:"type"`
	ID        string                 `json:"id"`
	URL       string                 `json:"url"`
	Path      []string               `json:"path"` // tree placement
	Result    *domain.Classification `json:"classification"`
	CreatedAt time.Time              `json:"created_at"`
}

// Publisher writes completed classifications to a topic, keyed by entry id.
type Publisher struct {
	w messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (p *Publisher) Publish(ctx context.Context, e *domain.HistoryEntry) error {
	msg, err := message(e)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }

func message(e *domain.HistoryEntry) (kafka.Message, error) {
	if !e.Classified() {
		return kafka.Message{}, fmt.Errorf("entry %s has no classification", e.ID)
	}
	c := e.Classification.WithDefaults()
	value, err := json.Marshal(Event{
		Type:      EventType,
		ID:        e.ID,
		URL:       e.URL,
		Path:      taxonomy.Path(c),
		Result:    &c,
		CreatedAt: e.CreatedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventType)},
		},
		Time: e.CreatedAt,
	}, nil
}
