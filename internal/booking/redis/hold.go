package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-booking/internal/logger"
)

const (
	holdPrefix     = "booking_hold:"
	expiredChannel = "__keyevent@%d__:expired"
)

// Redis keeps a short-lived hold per pending payment. When the key expires
// the booking is treated as abandoned.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
	TTL    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Redis{Client: client, Logger: log, TTL: ttl}
}

func holdKey(reference string) string {
	return holdPrefix + reference
}

// ReferenceFromKey extracts the payment reference from an expired hold key.
func ReferenceFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, holdPrefix) {
		return "", false
	}
	ref := strings.TrimPrefix(key, holdPrefix)
	return ref, ref != ""
}

// PlaceHold stores the hold for reference unless one already exists.
func (r *Redis) PlaceHold(ctx context.Context, reference, tripID string) (bool, error) {
	return r.Client.SetNX(ctx, holdKey(reference), tripID, r.TTL).Result()
}

// ReleaseHold removes a hold. A missing key is not an error.
func (r *Redis) ReleaseHold(ctx context.Context, reference string) error {
	err := r.Client.Del(ctx, holdKey(reference)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// EnableExpiryEvents turns on the keyspace notifications the expiry
// subscription depends on.
func (r *Redis) EnableExpiryEvents(ctx context.Context) error {
	return r.Client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
}

// SubscribeExpiredHolds calls onExpire for every hold that times out until
// ctx is cancelled. It returns once the subscription is active.
func (r *Redis) SubscribeExpiredHolds(ctx context.Context, onExpire func(ctx context.Context, reference string)) error {
	channel := fmt.Sprintf(expiredChannel, r.Client.Options().DB)
	pubsub := r.Client.PSubscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	r.Logger.Info("REDIS", fmt.Sprintf("Subscribed to %s", channel))

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ref, isHold := ReferenceFromKey(msg.Payload)
				if !isHold {
					continue
				}
				r.Logger.Info("HOLD_EXPIRY", fmt.Sprintf("Payment hold expired for %s", ref))
				onExpire(ctx, ref)
			}
		}
	}()
	return nil
}
