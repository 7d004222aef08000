package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafka "github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

func TestPublishOfferCreated(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != kafka.TopicOfferCreated {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "t1:rt1" {
			return errors.New("wrong key " + string(key))
		}
		var tenant string
		for _, h := range msg.Headers {
			if string(h.Key) == "tenant_id" {
				tenant = string(h.Value)
			}
		}
		if tenant != "t1" {
			return errors.New("missing tenant header")
		}
		val, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev kafka.OfferCreatedEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.OfferToken != "tok" || ev.Timestamp.IsZero() {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewProducer(sp, logger.NewNopLogger())
	require.NoError(t, p.PublishOfferCreated(context.Background(), kafka.OfferCreatedEvent{
		EntryID:      "e1",
		TenantID:     "t1",
		RidingTypeID: "rt1",
		OfferToken:   "tok",
	}))
	require.NoError(t, p.Close())
}

func TestPublishReturnsBrokerError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := NewProducer(sp, logger.NewNopLogger())
	err := p.PublishStatusChanged(context.Background(), kafka.StatusChangedEvent{TenantID: "t1", RidingTypeID: "rt1"})
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, p.Close())
}

func TestPublishEntryAdded(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev kafka.EntryAddedEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.EntryID != "e9" || ev.Position != 42 {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewProducer(sp, logger.NewNopLogger())
	require.NoError(t, p.PublishEntryAdded(context.Background(), kafka.EntryAddedEvent{
		EntryID: "e9", TenantID: "t1", RidingTypeID: "rt1", Position: 42,
	}))
	require.NoError(t, p.Close())
}
