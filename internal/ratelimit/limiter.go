// Package ratelimit throttles PIN verification attempts with fixed-window counters in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const defaultPrefix = "giftpin:verify"

var windowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// Limiter counts attempts per subject inside a fixed window.
// A nil Limiter, or one without a client, allows everything.
type Limiter struct {
	client redis.UniversalClient
	prefix string
	limit  int64
	window time.Duration
}

// New constructs a Limiter. It returns nil when client is nil or limit is not positive.
func New(client redis.UniversalClient, prefix string, limit int64, window time.Duration) *Limiter {
	if client == nil || limit <= 0 {
		return nil
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	if window < time.Second {
		window = time.Second
	}
	return &Limiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Key returns the counter key for subject.
func (l *Limiter) Key(subject string) string {
	return fmt.Sprintf("%s:%s", l.prefix, strings.TrimSpace(subject))
}

// Allow consumes one attempt for subject and reports whether it is within the limit.
// Redis failures are logged and allowed.
func (l *Limiter) Allow(ctx context.Context, subject string) bool {
	if l == nil || l.client == nil || strings.TrimSpace(subject) == "" {
		return true
	}
	count, errRun := windowScript.Run(ctx, l.client, []string{l.Key(subject)}, l.window.Milliseconds()).Int64()
	if errRun != nil {
		log.WithError(errRun).Warn("ratelimit: redis unavailable, allowing attempt")
		return true
	}
	return count <= l.limit
}
