package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseIfOwner deletes KEYS[1] only while it still holds ARGV[1].
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock takes the scope/id lease for ttl. It reports false while another
// owner holds it.
func (c *Client) TryLock(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, c.LockKey(scope, id), c.ownerID(), ttl)
}

// Unlock releases the scope/id lease if this client still owns it. A lease
// that expired and was taken by someone else is left alone.
func (c *Client) Unlock(ctx context.Context, scope, id string) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return releaseIfOwner.Run(ctx, c.cmd, []string{c.LockKey(scope, id)}, c.ownerID()).Err()
}

func (c *Client) ownerID() string {
	if c.owner == "" {
		return "unowned"
	}
	return c.owner
}
