package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

// BoardNotifier fans "board changed" events out over Redis Pub/Sub so every
// service instance can push them to the boards it is streaming.
type BoardNotifier interface {
	PublishBoardChange(ctx context.Context, ev models.BoardChangeEvent) error
	SubscribeBoard(ctx context.Context, key models.PartitionKey) (BoardSubscription, error)
}

type BoardSubscription interface {
	Events() <-chan models.BoardChangeEvent
	Close() error
}

type redisBoardNotifier struct {
	cli    *redis.Client
	prefix string
	l      logger.Logger
}

func NewRedisBoardNotifier(cli *redis.Client, prefix string, l logger.Logger) BoardNotifier {
	return &redisBoardNotifier{
		cli:    cli,
		prefix: prefix,
		l:      l,
	}
}

func (r *redisBoardNotifier) PublishBoardChange(ctx context.Context, ev models.BoardChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal board event: %w", err)
	}

	ch := r.channel(models.PartitionKey{TenantID: ev.TenantID, RidingTypeID: ev.RidingTypeID})
	if err := r.cli.Publish(ctx, ch, data).Err(); err != nil {
		r.l.Errorf(ctx, "redisBoardNotifier.PublishBoardChange: %v", err)
		return err
	}

	r.l.Debugf(ctx, "Published board change %s on %s", ev.ChangeType, ch)
	return nil
}

func (r *redisBoardNotifier) SubscribeBoard(ctx context.Context, key models.PartitionKey) (BoardSubscription, error) {
	ps := r.cli.Subscribe(ctx, r.channel(key))
	// Receive blocks until Redis confirms the subscription, so nothing
	// published after this call returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		r.l.Errorf(ctx, "redisBoardNotifier.SubscribeBoard: %v", err)
		return nil, err
	}

	sub := &boardSubscription{
		ps:     ps,
		events: make(chan models.BoardChangeEvent, 16),
		done:   make(chan struct{}),
	}
	go sub.pump(ctx, r.l)
	return sub, nil
}

func (r *redisBoardNotifier) channel(key models.PartitionKey) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, key.TenantID, key.RidingTypeID)
}

type boardSubscription struct {
	ps     *redis.PubSub
	events chan models.BoardChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *boardSubscription) Events() <-chan models.BoardChangeEvent {
	return s.events
}

func (s *boardSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *boardSubscription) pump(ctx context.Context, l logger.Logger) {
	defer close(s.events)

	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev models.BoardChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				l.Warnf(ctx, "boardSubscription: dropping malformed event: %v", err)
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}
