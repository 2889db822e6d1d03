package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantprep/preprocessing-go/internal/services"
)

// DefaultReportTTL bounds how stale a cached validation report may be.
const DefaultReportTTL = 5 * time.Minute

// Store is the key-value surface the cache needs. database.RedisClient
// satisfies it.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// ReportCache caches validation reports in Redis so repeated validation
// calls do not re-read the whole raw series. A successful preprocess run
// invalidates the cached report for that series.
type ReportCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewReportCache creates a report cache with the given TTL; zero means
// DefaultReportTTL.
func NewReportCache(store Store, ttl time.Duration, logger *slog.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	return &ReportCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

func reportKey(seriesID string) string {
	return fmt.Sprintf("validation:%s", seriesID)
}

// Get returns the cached report for a series, or (nil, false) on miss. Cache
// failures degrade to a miss.
func (c *ReportCache) Get(ctx context.Context, seriesID string) (*services.ValidationReport, bool) {
	payload, err := c.store.Get(ctx, reportKey(seriesID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("report cache read failed", "series_id", seriesID, "error", err)
		}
		return nil, false
	}

	var report services.ValidationReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		c.logger.Warn("report cache payload corrupt", "series_id", seriesID, "error", err)
		return nil, false
	}
	return &report, true
}

// Set stores the report. Failures are logged, never propagated.
func (c *ReportCache) Set(ctx context.Context, seriesID string, report *services.ValidationReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("report cache encode failed", "series_id", seriesID, "error", err)
		return
	}
	if err := c.store.Set(ctx, reportKey(seriesID), payload, c.ttl); err != nil {
		c.logger.Warn("report cache write failed", "series_id", seriesID, "error", err)
	}
}

// Invalidate drops the cached report after a preprocess run changes the
// stored data.
func (c *ReportCache) Invalidate(ctx context.Context, seriesID string) {
	if err := c.store.Delete(ctx, reportKey(seriesID)); err != nil {
		c.logger.Warn("report cache invalidate failed", "series_id", seriesID, "error", err)
	}
}
