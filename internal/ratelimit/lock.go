package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrLeaseHeld is returned when another holder owns the key.
var ErrLeaseHeld = errors.New("lease held by another owner")

// releaseScript deletes the key only while it still carries the holder's
// token, so an expired lease never removes a successor's key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is an owned redis key with an expiry. The nil Lease stands for
// "no coordination" and all of its methods succeed.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

func acquireLease(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lease, error) {
	if client == nil {
		return nil, errors.New("lease client not configured")
	}
	if key == "" || ttl <= 0 {
		return nil, errors.New("lease key and ttl are required")
	}

	token := uuid.NewString()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return &Lease{client: client, key: key, token: token}, nil
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
