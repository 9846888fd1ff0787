package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

func stockKey(productID string) string { return stockKeyPrefix + productID }

func fansGeoKey(stadiumID string) string { return "stadium:" + stadiumID + ":fans" }

func checkInCountKey(eventID string) string { return domain.CheckInCounterKey(eventID) }

// reserveStockScript decrements every KEYS[i] by ARGV[i] only if all of them
// have enough stock. Missing keys count as zero.
var reserveStockScript = redis.NewScript(`
for i = 1, #KEYS do
	local current = tonumber(redis.call('GET', KEYS[i]))
	if not current or current < tonumber(ARGV[i]) then
		return 0
	end
end

for i = 1, #KEYS do
	redis.call('DECRBY', KEYS[i], ARGV[i])
end

return 1
`)

// incrIfExistsScript returns -1 when the counter has not been seeded yet.
var incrIfExistsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('INCR', KEYS[1])
`)

// seedMaxScript raises the counter to ARGV[1] unless it is already higher,
// and (re)arms its expiry to ARGV[2] milliseconds when that is positive.
var seedMaxScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]))
local value = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
if not current or current < value then
	current = value
	redis.call('SET', KEYS[1], value)
end
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return current
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// stockArgs orders keys so the script sees a stable key list.
func stockArgs(quantities map[string]int) ([]string, []any) {
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = stockKey(id)
		args[i] = quantities[id]
	}
	return keys, args
}

func (r *RedisAdapter) ReserveStock(ctx context.Context, quantities map[string]int) (bool, error) {
	if len(quantities) == 0 {
		return false, nil
	}
	keys, args := stockArgs(quantities)

	result, err := reserveStockScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) ReleaseStock(ctx context.Context, quantities map[string]int) error {
	pipe := r.client.TxPipeline()
	for id, q := range quantities {
		pipe.IncrBy(ctx, stockKey(id), int64(q))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID string, quantity int) error {
	return r.client.Set(ctx, stockKey(productID), quantity, 0).Err()
}

func (r *RedisAdapter) GetStock(ctx context.Context, productID string) (int, error) {
	return r.client.Get(ctx, stockKey(productID)).Int()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisAdapter) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *RedisAdapter) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisAdapter) AddFanPosition(ctx context.Context, loc domain.UserLocation) error {
	return r.client.GeoAdd(ctx, fansGeoKey(loc.StadiumID), &redis.GeoLocation{
		Name:      loc.UserID,
		Longitude: loc.Longitude,
		Latitude:  loc.Latitude,
	}).Err()
}

func (r *RedisAdapter) RemoveFanPosition(ctx context.Context, stadiumID, userID string) error {
	return r.client.ZRem(ctx, fansGeoKey(stadiumID), userID).Err()
}

func (r *RedisAdapter) NearbyFans(ctx context.Context, stadiumID string, lat, lng, radiusM float64, limit int) ([]domain.NearbyFan, error) {
	locs, err := r.client.GeoSearchLocation(ctx, fansGeoKey(stadiumID), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusM,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	fans := make([]domain.NearbyFan, 0, len(locs))
	for _, l := range locs {
		fans = append(fans, domain.NearbyFan{
			UserID:    l.Name,
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
			DistanceM: l.Dist,
		})
	}
	return fans, nil
}

func (r *RedisAdapter) IncrementCheckIns(ctx context.Context, eventID string) (int64, bool, error) {
	n, err := incrIfExistsScript.Run(ctx, r.client, []string{checkInCountKey(eventID)}).Int64()
	if err != nil {
		return 0, false, err
	}
	if n < 0 {
		return 0, false, nil
	}
	return n, true, nil
}

func (r *RedisAdapter) CheckInCount(ctx context.Context, eventID string) (int64, bool, error) {
	s, err := r.client.Get(ctx, checkInCountKey(eventID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse check-in count: %w", err)
	}
	return n, true, nil
}

func (r *RedisAdapter) SeedCheckInCount(ctx context.Context, eventID string, count int64, ttl time.Duration) (int64, error) {
	return seedMaxScript.Run(ctx, r.client, []string{checkInCountKey(eventID)}, count, ttl.Milliseconds()).Int64()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
