package bus

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channel = "devcollab:bus:rooms"

// RedisBus relays room broadcasts over a redis pub/sub channel shared by
// all instances.
type RedisBus struct {
	rdb      *redis.Client
	instance string
}

func NewRedisBus(rdb *redis.Client, instance string) *RedisBus {
	return &RedisBus{rdb: rdb, instance: instance}
}

func (b *RedisBus) Publish(ctx context.Context, msg Message) {
	msg.Instance = b.instance
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "bus").Msg("marshal relay message")
		return
	}
	if err := b.rdb.Publish(ctx, channel, data).Err(); err != nil {
		log.Warn().Err(err).Str("module", "bus").Str("room", string(msg.Room)).Msg("relay publish failed")
	}
}

func (b *RedisBus) Subscribe(ctx context.Context, h Handler) {
	sub := b.rdb.Subscribe(ctx, channel)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					log.Warn().Err(err).Str("module", "bus").Msg("bad relay message")
					continue
				}
				if msg.Instance == b.instance {
					continue
				}
				h(msg)
			}
		}
	}()
	log.Info().Str("module", "bus").Str("instance", b.instance).Msg("subscribed to relay channel")
}
