package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/metrics"
)

// Cached wraps a primary Oracle with a Redis read-through cache.
// Quotes for hot symbols (valuation and leaderboards hit the same few
// symbols repeatedly) are served from Redis within the TTL; cache
// failures fall through to the primary rather than failing the lookup.
type Cached struct {
	primary Oracle
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCached creates a cached wrapper around a primary oracle.
func NewCached(primary Oracle, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (c *Cached) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if val, err := c.rdb.Get(ctx, quoteKey(symbol)).Result(); err == nil {
		if price, perr := decimal.NewFromString(val); perr == nil {
			metrics.QuoteCacheHits.Inc()
			return price, nil
		}
	}
	metrics.QuoteCacheMisses.Inc()

	price, err := c.primary.Quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	c.rdb.Set(ctx, quoteKey(symbol), price.String(), c.ttl)
	return price, nil
}

func (c *Cached) DailySeries(ctx context.Context, symbol string) ([]PricePoint, error) {
	if data, err := c.rdb.Get(ctx, seriesKey(symbol)).Bytes(); err == nil {
		var points []PricePoint
		if json.Unmarshal(data, &points) == nil {
			metrics.QuoteCacheHits.Inc()
			return points, nil
		}
	}
	metrics.QuoteCacheMisses.Inc()

	points, err := c.primary.DailySeries(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(points); err == nil {
		c.rdb.Set(ctx, seriesKey(symbol), data, c.ttl)
	}
	return points, nil
}

func quoteKey(symbol string) string  { return fmt.Sprintf("quote:%s", symbol) }
func seriesKey(symbol string) string { return fmt.Sprintf("series:%s", symbol) }
