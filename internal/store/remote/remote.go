// Package remote implements the object-storage and redis-backed
// remote backends for the store and cache. Every
// operation falls back to the caller's local path on failure (logged,
// non-fatal); nothing here ever persists credentials, which are read
// from the host environment only.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tbrumbaugh5396/meta/pkg/logger"
)

var log = logger.New("store:remote")

// ObjectBackend is the minimal object-storage contract the store
// needs from either an S3 bucket or a GCS bucket addressed through
// its S3-interoperability endpoint.
type ObjectBackend interface {
	Put(ctx context.Context, hash string, data []byte) error
	Get(ctx context.Context, hash string) ([]byte, bool, error)
	Exists(ctx context.Context, hash string) (bool, error)
}

// Limiter wraps a token-bucket rate limiter around backend calls,
// composed with the retry/backoff shape from internal/gitdriver but
// scoped to remote-storage traffic specifically.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter creates a limiter allowing burst requests immediately and
// refilling at ratePerSecond tokens/second thereafter.
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.rl.Wait(ctx)
}

// FallbackPut attempts a remote Put via backend, logging and
// swallowing any error so the caller can proceed with the local path:
// remote operations always fall back to local on failure.
func FallbackPut(ctx context.Context, backend ObjectBackend, limiter *Limiter, hash string, data []byte) {
	if backend == nil {
		return
	}
	if err := limiter.Wait(ctx); err != nil {
		log.Printf("rate limiter wait cancelled for put(%s): %v", hash, err)
		return
	}
	if err := backend.Put(ctx, hash, data); err != nil {
		log.Printf("remote put failed for %s, continuing with local copy only: %v", hash, err)
	}
}

// FallbackGet attempts a remote Get, returning ok=false (never an
// error) on any failure so the caller falls back to a local miss.
func FallbackGet(ctx context.Context, backend ObjectBackend, limiter *Limiter, hash string) ([]byte, bool) {
	if backend == nil {
		return nil, false
	}
	if err := limiter.Wait(ctx); err != nil {
		log.Printf("rate limiter wait cancelled for get(%s): %v", hash, err)
		return nil, false
	}
	data, ok, err := backend.Get(ctx, hash)
	if err != nil {
		log.Printf("remote get failed for %s, falling back to local: %v", hash, err)
		return nil, false
	}
	return data, ok
}

// ParseURL splits a remote_store / remote_cache URL into its scheme
// and bucket/host+prefix component.
func ParseURL(url string) (scheme, rest string, err error) {
	for _, prefix := range []string{"s3://", "gs://", "redis://", "rediss://"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimSuffix(prefix, "://"), strings.TrimPrefix(url, prefix), nil
		}
	}
	return "", "", fmt.Errorf("unrecognized remote backend url %q", url)
}

// backoffSchedule mirrors the git driver's bounded exponential
// backoff shape (1s, 2s, 4s, ...) for the rare case a backend needs an
// explicit retry loop on top of rate limiting (e.g. a transient 5xx
// from the object store).
func backoffSchedule(maxAttempts int) []time.Duration {
	out := make([]time.Duration, 0, maxAttempts)
	d := time.Second
	for i := 0; i < maxAttempts; i++ {
		out = append(out, d)
		d *= 2
	}
	return out
}
