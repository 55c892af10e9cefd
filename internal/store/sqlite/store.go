package sqlite

import (
	"context"
	"errors"
	"time"

	"trading-analytics/internal/model"
)

// Store pairs a Writer and a Reader on the same database file. It is the
// market-data provider and the run journal of the analytics service.
type Store struct {
	*Writer
	reader *Reader
}

// Open opens (or creates) the database at path for reading and writing.
func Open(path string) (*Store, error) {
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		return nil, err
	}
	r, err := NewReader(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Store{Writer: w, reader: r}, nil
}

// ReadSeries implements model.SeriesReader.
func (s *Store) ReadSeries(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) (*model.Series, error) {
	return s.reader.ReadSeries(ctx, symbol, interval, from, to)
}

// Instruments implements model.SeriesReader.
func (s *Store) Instruments(ctx context.Context) ([]model.Instrument, error) {
	return s.reader.Instruments(ctx)
}

// LoadRun implements model.ResultReader.
func (s *Store) LoadRun(ctx context.Context, runID string) (*model.RunRecord, error) {
	return s.reader.LoadRun(ctx, runID)
}

// RecentRuns lists the newest journaled runs.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	return s.reader.RecentRuns(ctx, limit)
}

// Close closes both connections.
func (s *Store) Close() error {
	return errors.Join(s.reader.Close(), s.Writer.Close())
}
