package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka"
	"github.com/vogiaan1904/farm-waitlist/internal/service"
)

// HandleSlotReleased offers a freed lesson slot to the head of the matching
// waitlist. Undecodable payloads are logged and skipped; they would fail the
// same way on every redelivery.
func (c *Consumer) HandleSlotReleased(ctx context.Context, message *sarama.ConsumerMessage) error {
	c.l.Info(ctx, "HandleSlotReleased consumed")

	var e kafka.SlotReleasedEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleSlotReleased: %v", err)
		return nil
	}

	if err := c.svc.HandleSlotReleased(ctx, service.SlotReleasedInput{
		TenantID:     e.TenantID,
		RidingTypeID: e.RidingTypeID,
		OccurrenceID: e.OccurrenceID,
		RequestedDay: e.RequestedDay,
		ReleasedAt:   e.ReleasedAt,
	}); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleSlotReleased: %v", err)
		return err
	}

	return nil
}
