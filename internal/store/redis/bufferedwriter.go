package redis

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"trading-analytics/internal/model"
)

// ResultPublisher is the write side of the cache; *Writer implements it.
type ResultPublisher interface {
	PutResult(ctx context.Context, runID string, data []byte) error
	PublishEquity(ctx context.Context, runID string, p model.EquityPoint) error
	PublishTrade(ctx context.Context, runID string, t model.Trade) error
}

// ResultGetter is the read side of the cache; *Reader implements it.
type ResultGetter interface {
	GetResult(ctx context.Context, runID string) ([]byte, error)
}

const publishTimeout = 2 * time.Second

// pendingWrite is a result buffered while the breaker was open.
type pendingWrite struct {
	data []byte
	seq  uint64
}

// BufferedCache puts a circuit breaker in front of Redis.
//
// While the breaker is open, results are held locally (newest wins per run
// id) and flushed once it closes; live equity and trade publishes are
// dropped since they are only useful in real time. Reads are served from
// the local buffer first and report ErrCacheMiss when Redis is unreachable,
// so callers fall back to the SQLite journal.
//
// BufferedCache satisfies model.ResultCache and the backtest observer.
type BufferedCache struct {
	w   ResultPublisher
	r   ResultGetter
	cb  *CircuitBreaker
	ctx context.Context

	mu      sync.Mutex
	pending map[string]pendingWrite
	order   []string
	seq     uint64
	maxBuf  int

	OnBuffer func()          // a result was buffered
	OnFlush  func(count int) // buffered results were written
	OnDrop   func()          // a live publish was dropped
}

// NewBufferedCache wraps w and r with cb. r may be nil, in which case only
// locally buffered results are readable.
func NewBufferedCache(ctx context.Context, w ResultPublisher, r ResultGetter, cb *CircuitBreaker, maxBufferSize int) *BufferedCache {
	if maxBufferSize <= 0 {
		maxBufferSize = 1000
	}
	bc := &BufferedCache{
		w:       w,
		r:       r,
		cb:      cb,
		ctx:     ctx,
		pending: make(map[string]pendingWrite),
		maxBuf:  maxBufferSize,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bc.Flush()
		}
	}
	return bc
}

// PutResult writes data through the breaker, buffering it on failure.
func (bc *BufferedCache) PutResult(ctx context.Context, runID string, data []byte) error {
	err := bc.cb.Execute(func() error { return bc.w.PutResult(ctx, runID, data) })
	if err == nil {
		return nil
	}
	bc.buffer(runID, data)
	if errors.Is(err, ErrCircuitOpen) {
		return nil
	}
	return err
}

// GetResult returns a buffered result, or the cached one from Redis.
func (bc *BufferedCache) GetResult(ctx context.Context, runID string) ([]byte, error) {
	bc.mu.Lock()
	pw, ok := bc.pending[runID]
	bc.mu.Unlock()
	if ok {
		return pw.data, nil
	}
	if bc.r == nil {
		return nil, ErrCacheMiss
	}

	var out []byte
	err := bc.cb.Execute(func() error {
		d, err := bc.r.GetResult(ctx, runID)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		out = d
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrCacheMiss
	}
	return out, nil
}

// OnEquity publishes an equity point, dropping it when Redis is unavailable.
func (bc *BufferedCache) OnEquity(runID string, p model.EquityPoint) {
	bc.publish(func(ctx context.Context) error { return bc.w.PublishEquity(ctx, runID, p) })
}

// OnTrade publishes a closed trade, dropping it when Redis is unavailable.
func (bc *BufferedCache) OnTrade(runID string, t model.Trade) {
	bc.publish(func(ctx context.Context) error { return bc.w.PublishTrade(ctx, runID, t) })
}

func (bc *BufferedCache) publish(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(bc.ctx, publishTimeout)
	defer cancel()
	if err := bc.cb.Execute(func() error { return fn(ctx) }); err != nil {
		if bc.OnDrop != nil {
			bc.OnDrop()
		}
	}
}

func (bc *BufferedCache) buffer(runID string, data []byte) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if _, ok := bc.pending[runID]; !ok {
		if len(bc.order) >= bc.maxBuf {
			oldest := bc.order[0]
			bc.order = bc.order[1:]
			delete(bc.pending, oldest)
		}
		bc.order = append(bc.order, runID)
	}
	bc.seq++
	bc.pending[runID] = pendingWrite{data: data, seq: bc.seq}

	if bc.OnBuffer != nil {
		bc.OnBuffer()
	}
}

// Flush writes every buffered result through the breaker. Results that
// still fail stay buffered. It returns the number written.
func (bc *BufferedCache) Flush() int {
	bc.mu.Lock()
	if len(bc.order) == 0 {
		bc.mu.Unlock()
		return 0
	}
	ids := append([]string(nil), bc.order...)
	snapshot := make(map[string]pendingWrite, len(ids))
	for _, id := range ids {
		snapshot[id] = bc.pending[id]
	}
	bc.mu.Unlock()

	flushed := 0
	for _, id := range ids {
		pw := snapshot[id]
		if err := bc.cb.Execute(func() error { return bc.w.PutResult(bc.ctx, id, pw.data) }); err != nil {
			break
		}
		bc.remove(id, pw.seq)
		flushed++
	}

	if flushed > 0 {
		log.Printf("[buffered-cache] flushed %d buffered results", flushed)
		if bc.OnFlush != nil {
			bc.OnFlush(flushed)
		}
	}
	return flushed
}

// remove drops id from the buffer unless it was overwritten meanwhile.
func (bc *BufferedCache) remove(id string, seq uint64) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if cur, ok := bc.pending[id]; !ok || cur.seq != seq {
		return
	}
	delete(bc.pending, id)
	for i, o := range bc.order {
		if o == id {
			bc.order = append(bc.order[:i:i], bc.order[i+1:]...)
			break
		}
	}
}

// PendingCount returns the number of results waiting to be flushed.
func (bc *BufferedCache) PendingCount() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.order)
}

// Breaker returns the circuit breaker guarding this cache.
func (bc *BufferedCache) Breaker() *CircuitBreaker { return bc.cb }
