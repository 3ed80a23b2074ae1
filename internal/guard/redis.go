package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token, so a
// hold that expired and was re-taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Guard shared by every server instance pointing at the same
// Redis. Holds expire after ttl so a crashed holder cannot block a user
// forever.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ Guard = (*Redis)(nil)

// NewRedis returns a guard storing holds under prefix+key.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Acquire takes the hold with SET NX.
//
// LOCK WITH AN OWNER TOKEN:
//
//	SET medhistory:share:<user> <uuid> NX PX 60000
//
// NX makes the write succeed only if the key is absent, atomically, so two
// replicas racing for the same user cannot both win. PX sets the expiry in
// the same command; there is no window where the key exists without one.
// The uuid identifies this holder. If the hold expires and another request
// takes it, our late release must not delete their key: releaseScript
// compares the stored value with our token and deletes only on a match,
// inside Redis, as one step.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	full := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("guard: acquiring %s: %w", full, err)
	}
	if !ok {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the request context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{full}, token).Err(); err != nil {
				r.logger.Warn("releasing guard failed; it will expire", "key", full, "error", err)
			}
		})
	}, nil
}
