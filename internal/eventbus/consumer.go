package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"doctrine/internal/platform/config"
)

// CampaignCreator is the downstream collaborator boundary. It is solely
// responsible for what a campaign is; the consumer only guarantees it sees
// each event id once.
type CampaignCreator interface {
	CreateCampaign(ctx context.Context, notification Notification) error
}

// CampaignHandler dedupes deliveries and hands fresh ones to the creator.
// It is transport-agnostic: the Kafka consumer and the memory bus both feed
// it.
type CampaignHandler struct {
	deduper Deduper
	creator CampaignCreator
	logger  *slog.Logger
}

func NewCampaignHandler(deduper Deduper, creator CampaignCreator, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{deduper: deduper, creator: creator, logger: logger}
}

func (h *CampaignHandler) Handle(ctx context.Context, notification Notification) error {
	first, err := h.deduper.FirstDelivery(ctx, notification.EventID)
	if err != nil {
		return err
	}
	if !first {
		h.logger.DebugContext(ctx, "duplicate delivery dropped", "event_id", notification.EventID)
		return nil
	}
	if err := h.creator.CreateCampaign(ctx, notification); err != nil {
		if releaseErr := h.deduper.Release(ctx, notification.EventID); releaseErr != nil {
			h.logger.ErrorContext(ctx, "failed to release event claim",
				"event_id", notification.EventID, "error", releaseErr)
		}
		return fmt.Errorf("create campaign for event %s: %w", notification.EventID, err)
	}
	h.logger.InfoContext(ctx, "campaign created",
		"event_id", notification.EventID, "entity_id", notification.EntityID,
		"change_type", notification.ChangeType, "priority", notification.Priority)
	return nil
}

// KafkaConsumer polls the signal topic and feeds the campaign handler.
// Offsets commit only after a poll is fully handled, so an interrupted batch
// re-delivers and the handler's deduper absorbs the repeats.
type KafkaConsumer struct {
	client  *kgo.Client
	handler *CampaignHandler
	logger  *slog.Logger
}

func NewKafkaConsumer(cfg config.Kafka, handler *CampaignHandler, logger *slog.Logger) (*KafkaConsumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.SignalTopic),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &KafkaConsumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is canceled.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch error", "topic", topic, "partition", partition, "error", err)
		})

		var handleErr error
		fetches.EachRecord(func(record *kgo.Record) {
			if handleErr != nil {
				return
			}
			var notification Notification
			if err := json.Unmarshal(record.Value, &notification); err != nil {
				c.logger.ErrorContext(ctx, "malformed notification dropped",
					"topic", record.Topic, "offset", record.Offset, "error", err)
				return
			}
			handleErr = c.handler.Handle(ctx, notification)
		})
		if handleErr != nil {
			c.logger.ErrorContext(ctx, "notification handling failed", "error", handleErr)
			continue
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.ErrorContext(ctx, "offset commit failed", "error", err)
		}
	}
}

func (c *KafkaConsumer) Close() {
	c.client.Close()
}
