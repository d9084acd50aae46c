package ltv

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"customerIntel/domain"
	"customerIntel/pkg/logger"
)

const (
	DefaultBenchmarkTTL = time.Hour

	defaultAvgLTV        = 100.0
	defaultAvgFirstOrder = 50.0
	defaultPlatinum      = 1000.0
	defaultGold          = 500.0
	defaultSilver        = 200.0
)

// PopulationStats aggregates the analyzable purchasers of a tenant.
type PopulationStats struct {
	Count         int64
	AvgLTV        float64
	AvgOrderValue float64
	P95LTV        float64
	P80LTV        float64
	P50LTV        float64
}

// BenchmarkCache stores computed benchmarks by key until the TTL lapses.
type BenchmarkCache interface {
	GetBenchmarks(ctx context.Context, key string) (domain.LtvBenchmarks, bool, error)
	SetBenchmarks(ctx context.Context, key string, b domain.LtvBenchmarks, ttl time.Duration) error
}

func BenchmarkKey(tenantID *uint) string {
	if tenantID == nil {
		return "ltv:benchmarks:global"
	}
	return fmt.Sprintf("ltv:benchmarks:%d", *tenantID)
}

// BuildBenchmarks falls back to fixed defaults for an empty population.
// Tier thresholds never decrease from platinum down to silver.
func BuildBenchmarks(stats PopulationStats, now time.Time) domain.LtvBenchmarks {
	b := domain.LtvBenchmarks{
		AvgLTV:           defaultAvgLTV,
		AvgFirstPurchase: defaultAvgFirstOrder,
		Tiers: domain.TierThresholds{
			Platinum: defaultPlatinum,
			Gold:     defaultGold,
			Silver:   defaultSilver,
		},
		ComputedAt: now,
	}
	if stats.Count > 0 {
		b.AvgLTV = stats.AvgLTV
		b.AvgFirstPurchase = stats.AvgOrderValue
		b.Tiers = domain.TierThresholds{
			Platinum: stats.P95LTV,
			Gold:     stats.P80LTV,
			Silver:   stats.P50LTV,
		}
	}
	b.Avg12mLTV = b.AvgLTV * 1.5
	b.Avg24mLTV = b.AvgLTV * 2.5

	b.Tiers.Gold = math.Min(b.Tiers.Gold, b.Tiers.Platinum)
	b.Tiers.Silver = math.Min(b.Tiers.Silver, b.Tiers.Gold)
	return b
}

type cacheEntry struct {
	benchmarks domain.LtvBenchmarks
	expiresAt  time.Time
}

// MemoryCache is the in-process BenchmarkCache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *MemoryCache) GetBenchmarks(_ context.Context, key string) (domain.LtvBenchmarks, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.LtvBenchmarks{}, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return domain.LtvBenchmarks{}, false, nil
	}
	return e.benchmarks, true, nil
}

func (c *MemoryCache) SetBenchmarks(_ context.Context, key string, b domain.LtvBenchmarks, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{benchmarks: b, expiresAt: c.now().Add(ttl)}
	return nil
}

// benchmarks reads through the cache. A failing cache is logged and bypassed.
func (s *LtvService) benchmarks(ctx context.Context, tenantID *uint) (domain.LtvBenchmarks, error) {
	key := BenchmarkKey(tenantID)

	b, ok, err := s.cache.GetBenchmarks(ctx, key)
	if err != nil {
		logger.Warn("benchmark cache read failed", "key", key, "error", err)
	}
	if ok {
		return b, nil
	}

	stats, err := s.repo.PurchaserStats(ctx, tenantID)
	if err != nil {
		return domain.LtvBenchmarks{}, fmt.Errorf("load purchaser stats: %w", err)
	}
	b = BuildBenchmarks(stats, s.now())

	if err := s.cache.SetBenchmarks(ctx, key, b, s.cfg.BenchmarkTTL); err != nil {
		logger.Warn("benchmark cache write failed", "key", key, "error", err)
	}
	return b, nil
}
