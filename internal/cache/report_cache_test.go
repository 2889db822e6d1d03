package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantprep/preprocessing-go/internal/database"
	"github.com/quantprep/preprocessing-go/internal/services"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ReportCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	store := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReportCache(store, ttl, logger), mr
}

func sampleReport() *services.ValidationReport {
	return &services.ValidationReport{
		TotalPoints:       100,
		MissingValues:     5,
		MissingPercentage: 5,
		DateRange: services.DateRange{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 5, 3, 0, 0, 0, time.UTC),
		},
		ValueStats: services.ValueStats{Mean: 102, Std: 90, Min: 100, Max: 1000},
	}
}

func TestReportCache_RoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "s1")
	assert.False(t, ok)

	cache.Set(ctx, "s1", sampleReport())

	got, ok := cache.Get(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, sampleReport(), got)

	// Keys are scoped per series.
	_, ok = cache.Get(ctx, "s2")
	assert.False(t, ok)
}

func TestReportCache_Invalidate(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "s1", sampleReport())
	cache.Invalidate(ctx, "s1")

	_, ok := cache.Get(ctx, "s1")
	assert.False(t, ok)
}

func TestReportCache_TTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "s1", sampleReport())
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, "s1")
	assert.False(t, ok)
}

func TestReportCache_CorruptPayloadIsMiss(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("validation:s1", "not json"))

	_, ok := cache.Get(ctx, "s1")
	assert.False(t, ok)
}
