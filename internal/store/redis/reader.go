package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"trading-analytics/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a result is not (or no longer) cached.
var ErrCacheMiss = errors.New("redis: cache miss")

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader reads cached results and subscribes to run progress.
type Reader struct {
	client *goredis.Client
}

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis-reader] connected to %s", cfg.Addr)
	return &Reader{client: client}, nil
}

// GetResult returns the cached result JSON for runID.
func (r *Reader) GetResult(ctx context.Context, runID string) ([]byte, error) {
	data, err := r.client.Get(ctx, resultKey(runID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get result %s: %w", runID, err)
	}
	return data, nil
}

// RecentRunIDs returns up to n cached run ids, newest first.
func (r *Reader) RecentRunIDs(ctx context.Context, n int64) ([]string, error) {
	ids, err := r.client.ZRevRange(ctx, resultIndexKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ZREVRANGE %s: %w", resultIndexKey, err)
	}
	return ids, nil
}

// EquityHistory reads every equity point published so far for runID.
func (r *Reader) EquityHistory(ctx context.Context, runID string) ([]model.EquityPoint, error) {
	msgs, err := r.client.XRange(ctx, equityStream(runID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("redis XRANGE %s: %w", equityStream(runID), err)
	}
	out := make([]model.EquityPoint, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil || ev.Equity == nil {
			continue
		}
		out = append(out, *ev.Equity)
	}
	return out, nil
}

// SubscribeRun subscribes to a run's progress channel.
// Returns the PubSub handle so the caller can listen on .Channel().
func (r *Reader) SubscribeRun(ctx context.Context, runID string) (*goredis.PubSub, error) {
	pubsub := r.client.Subscribe(ctx, RunChannel(runID))
	// Wait for confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", RunChannel(runID), err)
	}
	return pubsub, nil
}

// Client returns the underlying Redis client for health checks.
func (r *Reader) Client() *goredis.Client { return r.client }

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
