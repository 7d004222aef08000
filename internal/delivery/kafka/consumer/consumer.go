package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka"
	"github.com/vogiaan1904/farm-waitlist/internal/service"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

// SlotHandler is the part of the waitlist service the consumer drives.
type SlotHandler interface {
	HandleSlotReleased(ctx context.Context, in service.SlotReleasedInput) error
}

const (
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

type Consumer struct {
	consGr sarama.ConsumerGroup
	svc    SlotHandler
	l      logger.Logger
	wg     sync.WaitGroup

	retryDelay time.Duration
}

func NewConsumer(
	consGr sarama.ConsumerGroup,
	svc SlotHandler,
	l logger.Logger,
) *Consumer {
	return &Consumer{
		consGr:     consGr,
		svc:        svc,
		l:          l,
		retryDelay: defaultRetryDelay,
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	switch msg.Topic {
	case kafka.TopicSlotReleased:
		return c.HandleSlotReleased(ctx, msg)
	default:
		c.l.Warnf(ctx, "Unknown topic %s", msg.Topic)
		return nil
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	topics := []string{kafka.TopicSlotReleased}
	c.wg.Go(func() {
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.consumer.Start: %v", ctx.Err())
				return
			}
		}
	})

	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
		}
	})

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

// ConsumeClaim marks a message only after it was handled. Marking a later
// offset commits past every earlier one, so a failing message is retried in
// place until it succeeds or the session ends; in the latter case nothing
// more is marked and the group resumes from the failed offset.
func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			ctx := c.l.With(ss.Context(),
				"topic", message.Topic,
				"partition", message.Partition,
				"offset", message.Offset,
			)
			if err := c.processWithRetry(ctx, message); err != nil {
				c.l.Warnf(ctx, "delivery.kafka.consumer.consumer.ConsumeClaim: leaving message unmarked: %v", err)
				return nil
			}

			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}

// processWithRetry only returns an error once ctx is done.
func (c *Consumer) processWithRetry(ctx context.Context, msg *sarama.ConsumerMessage) error {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.processMessage(ctx, msg)
		if err == nil {
			return nil
		}
		c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.processWithRetry: attempt %d: %v", attempt, err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
