package geoindex

import (
	"context"
	"fmt"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/ports"

	"github.com/redis/go-redis/v9"
)

// RedisIndex implements ports.GeoIndex on Redis GEO commands. Coordinates
// live in a single geo set; freshness metadata lives in a per-worker hash
// so stale entries can be filtered out of radius queries.
type RedisIndex struct {
	client     *redis.Client
	key        string
	staleAfter time.Duration
}

// NewRedisIndex connects a geo index to Redis.
func NewRedisIndex(addr, password, key string, staleAfter time.Duration) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key, staleAfter: staleAfter}
}

var _ ports.GeoIndex = (*RedisIndex)(nil)

// Update stores the worker's coordinates and stamps the report time.
func (r *RedisIndex) Update(ctx context.Context, workerID string, p geo.Point, recordedAt time.Time) error {
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      workerID,
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err(); err != nil {
		return fmt.Errorf("geoadd %s: %w", workerID, err)
	}

	if err := r.client.HSet(ctx, r.metaKey(workerID), map[string]any{
		"recorded_at": recordedAt.UTC().Format(time.RFC3339Nano),
	}).Err(); err != nil {
		return fmt.Errorf("hset meta %s: %w", workerID, err)
	}
	return nil
}

// Remove drops the worker from the index, e.g. when going offline.
func (r *RedisIndex) Remove(ctx context.Context, workerID string) error {
	if err := r.client.ZRem(ctx, r.key, workerID).Err(); err != nil {
		return fmt.Errorf("zrem %s: %w", workerID, err)
	}
	if err := r.client.Del(ctx, r.metaKey(workerID)).Err(); err != nil {
		return fmt.Errorf("del meta %s: %w", workerID, err)
	}
	return nil
}

// Nearby returns workers within radiusKM of center, nearest first, skipping
// entries whose last report is older than the staleness window.
func (r *RedisIndex) Nearby(ctx context.Context, center geo.Point, radiusKM float64, limit int) ([]ports.NearbyWorker, error) {
	res, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     radiusKM,
			RadiusUnit: "km",
			Sort:       "ASC",
			// overfetch so stale entries can be dropped without undershooting
			Count: limit * 2,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geosearch: %w", err)
	}

	cutoff := time.Now().UTC().Add(-r.staleAfter)
	out := make([]ports.NearbyWorker, 0, len(res))
	for _, loc := range res {
		recordedAt, ok := r.recordedAt(ctx, loc.Name)
		if !ok || recordedAt.Before(cutoff) {
			continue
		}
		out = append(out, ports.NearbyWorker{
			WorkerID:   loc.Name,
			Point:      geo.Point{Lat: loc.Latitude, Lng: loc.Longitude},
			DistanceKM: loc.Dist,
			RecordedAt: recordedAt,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close releases the underlying Redis client.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}

func (r *RedisIndex) recordedAt(ctx context.Context, workerID string) (time.Time, bool) {
	v, err := r.client.HGet(ctx, r.metaKey(workerID), "recorded_at").Result()
	if err != nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func (r *RedisIndex) metaKey(workerID string) string {
	return r.key + ":meta:" + workerID
}
