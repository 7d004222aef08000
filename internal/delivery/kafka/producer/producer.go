package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	kafka "github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

type Producer interface {
	PublishEntryAdded(ctx context.Context, event kafka.EntryAddedEvent) error
	PublishStatusChanged(ctx context.Context, event kafka.StatusChangedEvent) error
	PublishOfferCreated(ctx context.Context, event kafka.OfferCreatedEvent) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishEntryAdded(ctx context.Context, event kafka.EntryAddedEvent) error {
	event.Timestamp = time.Now().UTC()
	if err := p.send(ctx, kafka.TopicEntryAdded, event.TenantID, event.RidingTypeID, event); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishEntryAdded: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) PublishStatusChanged(ctx context.Context, event kafka.StatusChangedEvent) error {
	event.Timestamp = time.Now().UTC()
	if err := p.send(ctx, kafka.TopicStatusChanged, event.TenantID, event.RidingTypeID, event); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishStatusChanged: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) PublishOfferCreated(ctx context.Context, event kafka.OfferCreatedEvent) error {
	event.Timestamp = time.Now().UTC()
	if err := p.send(ctx, kafka.TopicOfferCreated, event.TenantID, event.RidingTypeID, event); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishOfferCreated: %v", err)
		return err
	}
	return nil
}

// send keys every message by partition so consumers see one riding type's
// events in commit order.
func (p *implProducer) send(ctx context.Context, topic, tenantID, ridingTypeID string, event any) error {
	val, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(kafka.PartitionKey(tenantID, ridingTypeID)),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{Key: []byte("timestamp"), Value: []byte(time.Now().UTC().Format(time.RFC3339))},
			{Key: []byte("tenant_id"), Value: []byte(tenantID)},
		},
	}

	partition, offset, err := p.prod.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s: %w", topic, err)
	}

	p.l.Debugf(ctx, "Published %s to partition %d at offset %d", topic, partition, offset)
	return nil
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}
