package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"doctrine/internal/platform/config"
)

// KafkaPublisher produces notifications to the signal topic. Records are
// keyed by entity id so deltas for one entity land on one partition; the bus
// guarantees no ordering across entities.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(cfg config.Kafka) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.SignalTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: cfg.SignalTopic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(notification.EntityID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification %s: %w", notification.EventID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
