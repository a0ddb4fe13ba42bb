package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/makerhub/internal/config"
)

const keyCheckoutClient = "checkout:create:ip:%s"

// CheckoutLimiter throttles checkout session creation per client address.
// A nil limiter allows everything.
type CheckoutLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewCheckoutLimiter(bucket *TokenBucket, rate float64, burst int) *CheckoutLimiter {
	if bucket == nil || rate <= 0 || burst <= 0 {
		return nil
	}
	return &CheckoutLimiter{bucket: bucket, rate: rate, burst: burst}
}

func newCheckoutLimiterFromConfig(cfg config.Config, bucket *TokenBucket) *CheckoutLimiter {
	return NewCheckoutLimiter(bucket, cfg.Redis.CheckoutRate, cfg.Redis.CheckoutBurst)
}

func (l *CheckoutLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *CheckoutLimiter) Allow(ctx context.Context, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		clientIP = "unknown"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyCheckoutClient, clientIP), l.rate, l.burst)
}
