package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/maintenance-service/internal/alerts"
)

const (
	alertReportKey     = "maintenance:alerts:report"
	alertGenerationKey = "maintenance:alerts:generation"
)

// AlertCache stores the last evaluated alert report. Every stock-changing
// commit invalidates it and bumps the generation. Set stores a report only
// while the generation read before evaluating it is still current, so a
// report computed before a stock move is never cached after it.
type AlertCache interface {
	Get(ctx context.Context) (*alerts.Report, bool, error)
	Generation(ctx context.Context) (uint64, error)
	Set(ctx context.Context, generation uint64, report alerts.Report) (bool, error)
	Invalidate(ctx context.Context) error
}

// NewAlertCache picks the Redis cache when a client is configured and an
// in-process cache otherwise. A non-positive ttl disables caching.
func NewAlertCache(r *Redis, ttl time.Duration) AlertCache {
	if ttl <= 0 {
		return noopAlertCache{}
	}
	if r.Configured() {
		return &redisAlertCache{client: r.Client, ttl: ttl}
	}
	return &localAlertCache{ttl: ttl, now: time.Now}
}

type redisAlertCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisAlertCache) Get(ctx context.Context) (*alerts.Report, bool, error) {
	raw, err := c.client.Get(ctx, alertReportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read alert cache: %w", err)
	}
	var report alerts.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false, fmt.Errorf("decode alert cache: %w", err)
	}
	return &report, true, nil
}

func (c *redisAlertCache) Generation(ctx context.Context) (uint64, error) {
	generation, err := c.client.Get(ctx, alertGenerationKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read alert generation: %w", err)
	}
	return generation, nil
}

func (c *redisAlertCache) Set(ctx context.Context, generation uint64, report alerts.Report) (bool, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return false, fmt.Errorf("encode alert cache: %w", err)
	}
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, alertGenerationKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, alertReportKey, raw, c.ttl)
			return nil
		})
		stored = err == nil
		return err
	}, alertGenerationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("write alert cache: %w", err)
	}
	return stored, nil
}

func (c *redisAlertCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, alertGenerationKey)
		pipe.Del(ctx, alertReportKey)
		return nil
	})
	return err
}

type localAlertCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	report     *alerts.Report
	expires    time.Time
	generation uint64
}

func (c *localAlertCache) Get(context.Context) (*alerts.Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.report == nil || !c.now().Before(c.expires) {
		return nil, false, nil
	}
	cp := *c.report
	return &cp, true, nil
}

func (c *localAlertCache) Generation(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *localAlertCache) Set(_ context.Context, generation uint64, report alerts.Report) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false, nil
	}
	c.report = &report
	c.expires = c.now().Add(c.ttl)
	return true, nil
}

func (c *localAlertCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.report = nil
	return nil
}

type noopAlertCache struct{}

func (noopAlertCache) Get(context.Context) (*alerts.Report, bool, error) { return nil, false, nil }
func (noopAlertCache) Generation(context.Context) (uint64, error) { return 0, nil }
func (noopAlertCache) Set(context.Context, uint64, alerts.Report) (bool, error) { return false, nil }
func (noopAlertCache) Invalidate(context.Context) error { return nil }
