package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

const reservationPrefix = "registration:reserve:"

// releaseScript deletes the key only while it still holds our token, so a
// slow request never frees a reservation that expired and was re-taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Reservations holds short-lived claims on usernames so that concurrent
// registrations across instances do not race to the store.
type Reservations struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewReservations(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Reservations {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reservations{rdb: rdb, ttl: ttl, logger: logger}
}

// Reserve claims name. ok is false when another request holds it. The
// returned release func is always safe to call.
func (r *Reservations) Reserve(ctx context.Context, name string) (func(), bool, error) {
	key := reservationPrefix + name
	token := uuid.New().String()

	ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("reserve %q: %w", name, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		// Detached so a cancelled request still frees its claim.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil {
			r.logger.Warn("release reservation failed", "username", name, "error", err)
		}
	}
	return release, true, nil
}
