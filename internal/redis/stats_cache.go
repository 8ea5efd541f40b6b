package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"roadAccident/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

// setIfGeneration writes the snapshot only while the generation counter still
// holds the value the caller read. A missing counter counts as 0.
var setIfGeneration = goredis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// StatsCache holds one stats snapshot next to a generation counter. Every
// Invalidate bumps the counter, so a snapshot computed before a write can not
// be stored after that write's Invalidate.
type StatsCache struct {
	client *goredis.Client
	key    string
	genKey string
}

func NewStatsCache(r *Redis) *StatsCache {
	return newStatsCache(r.Client, "reports:stats")
}

func newStatsCache(client *goredis.Client, key string) *StatsCache {
	return &StatsCache{client: client, key: key, genKey: key + ":gen"}
}

// Get returns the cached snapshot, nil on a miss, and the generation it was
// read at.
func (c *StatsCache) Get(ctx context.Context) (*domain.ReportStats, int64, error) {
	vals, err := c.client.MGet(ctx, c.key, c.genKey).Result()
	if err != nil {
		return nil, 0, err
	}

	var gen int64
	if raw, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, 0, err
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, nil
	}
	var s domain.ReportStats
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, 0, err
	}
	return &s, gen, nil
}

// Set stores s unless an Invalidate ran after gen was read. It reports
// whether the snapshot was stored.
func (c *StatsCache) Set(ctx context.Context, s *domain.ReportStats, ttl time.Duration, gen int64) (bool, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return false, err
	}
	n, err := setIfGeneration.Run(ctx, c.client,
		[]string{c.key, c.genKey},
		b, strconv.FormatInt(gen, 10), ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *StatsCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	return err
}
