package app

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// fixedWindow increments a counter, starting its expiry on the first hit, and
// answers {hits, remaining window in ms}.
var fixedWindow = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local left = redis.call("PTTL", KEYS[1])
if left < 0 then
  left = tonumber(ARGV[1])
end
return {hits, left}
`)

// RedisMutationRateLimiter counts mutations per caller in fixed Redis windows.
type RedisMutationRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisMutationRateLimiter(client redis.UniversalClient, prefix string) *RedisMutationRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "omnixys:person:rate_limit"
	}
	return &RedisMutationRateLimiter{client: client, prefix: prefix}
}

// ConsumeRateLimit counts one hit for (scope, subject) and returns the hit
// count of the current window together with the whole seconds it has left.
// A zero limit or window disables limiting.
func (r *RedisMutationRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if r == nil || r.client == nil || limit <= 0 || window <= 0 || scope == "" || subject == "" {
		return 0, 0, nil
	}

	windowMs := max(window.Milliseconds(), 1000)
	key := r.prefix + ":" + scope + ":" + subject
	reply, err := fixedWindow.Run(ctx, r.client, []string{key}, windowMs).Int64Slice()
	if err != nil {
		return 0, 0, errors.Wrap(err, "run rate limit script")
	}
	if len(reply) != 2 {
		return 0, 0, errors.Errorf("rate limit script returned %d values", len(reply))
	}

	hits, leftMs := reply[0], reply[1]
	if leftMs < 0 {
		leftMs = windowMs
	}
	retryAfter := max(int((leftMs+999)/1000), 1)
	return int(hits), retryAfter, nil
}
