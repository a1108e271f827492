package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"probloom-client/internal/app"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "probloom:state"

// SnapshotPublisher fans store snapshots out to other instances over Redis pub/sub.
// Notes:
//   - Publishing is fire-and-forget; Redis keeps no copy of the tree.
//   - Each publish refreshes a liveness key so peers can see which instances are active.
type SnapshotPublisher struct {
	client   *redis.Client
	channel  string
	instance string
	ttl      time.Duration
}

func NewSnapshotPublisher(client *redis.Client, channel, instance string, ttl time.Duration) *SnapshotPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &SnapshotPublisher{
		client:   client,
		channel:  channel,
		instance: instance,
		ttl:      ttl,
	}
}

var _ app.Observer = (*SnapshotPublisher)(nil)

type envelope struct {
	Instance string       `json:"instance"`
	Snapshot app.Snapshot `json:"snapshot"`
}

// Publish implements app.Observer.
func (p *SnapshotPublisher) Publish(ctx context.Context, snap app.Snapshot) error {
	payload, err := json.Marshal(envelope{Instance: p.instance, Snapshot: snap})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, p.channel, payload)
	pipe.Set(ctx, p.livenessKey(), snap.Seq, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish snapshot %d: %w", snap.Seq, err)
	}
	return nil
}

// Follow delivers snapshots published by other instances until ctx is done.
func (p *SnapshotPublisher) Follow(ctx context.Context, fn func(instance string, snap app.Snapshot)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			if env.Instance == p.instance {
				continue
			}
			fn(env.Instance, env.Snapshot)
		}
	}
}

func (p *SnapshotPublisher) livenessKey() string {
	return "probloom:instance:" + p.instance
}
