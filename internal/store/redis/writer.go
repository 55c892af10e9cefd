// Package redis caches backtest results and publishes live run progress.
//
// Keys:
//
//	bt:result:{run_id}          SET, JSON Result, TTL
//	bt:results                  ZSET of run ids scored by completion time
//	bt:equity:{run_id}          STREAM of equity points (late joiners)
//	pub:backtest:{run_id}       PUBSUB, {"type":"equity"|"trade"|"done",...}
//	signal:latest:{strategy}:{symbol}  SET, last signal of a run
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trading-analytics/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultResultTTL = 24 * time.Hour
	defaultLatestTTL = 30 * time.Minute
	equityStreamMax  = 20000
	resultIndexMax   = 1000
	resultIndexKey   = "bt:results"
)

func resultKey(runID string) string  { return "bt:result:" + runID }
func equityStream(runID string) string { return "bt:equity:" + runID }

// RunChannel is the pub/sub channel carrying progress events for runID.
func RunChannel(runID string) string { return "pub:backtest:" + runID }

// Event is one message on a run channel.
type Event struct {
	Type   string             `json:"type"` // equity | trade | done
	RunID  string             `json:"run_id"`
	Equity *model.EquityPoint `json:"equity,omitempty"`
	Trade  *model.Trade       `json:"trade,omitempty"`
}

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr      string // Redis address, e.g. "localhost:6379"
	Password  string
	DB        int
	ResultTTL time.Duration
}

// Writer writes results, equity progress and signals to Redis.
type Writer struct {
	client    *goredis.Client
	resultTTL time.Duration
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
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

	ttl := cfg.ResultTTL
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client, resultTTL: ttl}, nil
}

// PutResult caches a serialized result and indexes it by completion time.
func (w *Writer) PutResult(ctx context.Context, runID string, data []byte) error {
	pipe := w.client.Pipeline()
	pipe.Set(ctx, resultKey(runID), data, w.resultTTL)
	pipe.ZAdd(ctx, resultIndexKey, &goredis.Z{Score: float64(time.Now().UnixMilli()), Member: runID})
	pipe.ZRemRangeByRank(ctx, resultIndexKey, 0, -resultIndexMax-1)
	pipe.Expire(ctx, equityStream(runID), w.resultTTL)
	done, _ := json.Marshal(Event{Type: "done", RunID: runID})
	pipe.Publish(ctx, RunChannel(runID), done)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put result %s: %w", runID, err)
	}
	return nil
}

// PublishEquity appends p to the run's equity stream and publishes it.
func (w *Writer) PublishEquity(ctx context.Context, runID string, p model.EquityPoint) error {
	data, err := json.Marshal(Event{Type: "equity", RunID: runID, Equity: &p})
	if err != nil {
		return err
	}
	jsonData := string(data)

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: equityStream(runID),
		MaxLen: equityStreamMax,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, RunChannel(runID), jsonData)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis equity pipeline for %s: %w", runID, err)
	}
	return nil
}

// PublishTrade publishes a closed trade on the run channel.
func (w *Writer) PublishTrade(ctx context.Context, runID string, t model.Trade) error {
	data, err := json.Marshal(Event{Type: "trade", RunID: runID, Trade: &t})
	if err != nil {
		return err
	}
	return w.client.Publish(ctx, RunChannel(runID), string(data)).Err()
}

// SetLatestSignal stores the last signal a strategy produced for symbol.
func (w *Writer) SetLatestSignal(ctx context.Context, strategy, symbol string, sig model.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	key := "signal:latest:" + strategy + ":" + symbol
	return w.client.Set(ctx, key, string(data), defaultLatestTTL).Err()
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
