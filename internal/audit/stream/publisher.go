// Package stream exports committed ledger entries to a Kafka topic.
//
// Export is an outbox relay, not an in-transaction hook: entries reach the
// topic only after their ledger transaction committed, strictly in sequence
// order, with the relay cursor persisted next to the ledger. Consumers may
// see an entry more than once after a relay crash and must dedupe on seq.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"beacon/internal/audit"
)

// Publisher produces ledger entries to Kafka. Records are keyed by tenant so
// each tenant's history stays ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// NewPublisher connects to the brokers and ensures the topic exists.
func NewPublisher(ctx context.Context, brokers []string, topic string, partitions int32) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect audit stream brokers: %w", err)
	}

	if err := ensureTopic(ctx, client, topic, partitions); err != nil {
		client.Close()
		return nil, err
	}
	return &Publisher{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	admin := kadm.NewClient(client)
	_, err := admin.CreateTopic(ctx, partitions, 1, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("ensure audit stream topic %q: %w", topic, err)
	}
	return nil
}

// envelope is the wire shape of one streamed entry.
type envelope struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	SubjectType string          `json:"subject_type"`
	SubjectID   string          `json:"subject_id"`
	ActorID     *string         `json:"actor_id,omitempty"`
	Action      string          `json:"action"`
	BeforeState json.RawMessage `json:"before_state,omitempty"`
	AfterState  json.RawMessage `json:"after_state,omitempty"`
	EpochToken  string          `json:"epoch_token,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Seq         int64           `json:"seq"`
}

// Publish produces the batch synchronously and returns once every record is
// acknowledged. A partial failure fails the whole call; the relay cursor is
// only advanced by the caller after success, so retries re-send the batch.
func (p *Publisher) Publish(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(entries))
	for _, entry := range entries {
		var actorID *string
		if entry.ActorID != nil {
			s := entry.ActorID.String()
			actorID = &s
		}
		value, err := json.Marshal(envelope{
			ID:          entry.ID.String(),
			TenantID:    entry.TenantID.String(),
			SubjectType: entry.SubjectType,
			SubjectID:   entry.SubjectID.String(),
			ActorID:     actorID,
			Action:      string(entry.Action),
			BeforeState: entry.BeforeState,
			AfterState:  entry.AfterState,
			EpochToken:  entry.EpochToken,
			CreatedAt:   entry.CreatedAt,
			Seq:         entry.Seq,
		})
		if err != nil {
			return fmt.Errorf("marshal audit stream record: %w", err)
		}
		records = append(records, &kgo.Record{
			Key:   []byte(entry.TenantID.String()),
			Value: value,
			Topic: p.topic,
		})
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit stream batch: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (p *Publisher) Close() {
	p.client.Close()
}
