package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// The delete only fires while the holder still owns the key, so releasing
// after expiry never clobbers a lock someone else acquired in the meantime.
const releaseIfOwnedScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker hands out best-effort distributed locks, used to keep multiple app
// instances from running the same scheduler pass concurrently. Locks expire
// on their own; a crashed holder blocks others for at most the ttl.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

// Lease is a held lock. It is returned only by a successful Acquire and is
// released at most once.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(releaseIfOwnedScript),
	}
}

// Acquire takes the lock when it is free. ok reports whether this caller got
// it; a lock held by someone else is not an error.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	if l == nil || l.client == nil {
		return nil, false, errors.New("lock client not configured")
	}
	if key == "" {
		return nil, false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lease{locker: l, key: key, token: token}, true, nil
}

func (lease *Lease) Release(ctx context.Context) error {
	if lease == nil || lease.locker == nil {
		return nil
	}
	err := lease.locker.release.Run(ctx, lease.locker.client, []string{lease.key}, lease.token).Err()
	lease.locker = nil
	return err
}
