package datasource

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/candlelab/replay/internal/types"
)

// SliceSource serves candles from an in-memory slice. Used by tests and by
// callers that already hold the series.
type SliceSource struct {
	candles []types.Candle
}

// NewSliceSource wraps an already ordered candle slice.
func NewSliceSource(candles []types.Candle) *SliceSource {
	return &SliceSource{candles: candles}
}

// Initialize implements CandleSource. The slice is the data; there is
// nothing to load.
func (s *SliceSource) Initialize(path string) error {
	return nil
}

// ReadAll implements CandleSource.
func (s *SliceSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Candle, error) bool) {
	return func(yield func(types.Candle, error) bool) {
		for _, candle := range s.candles {
			if start.IsSome() && candle.Time.Before(start.Unwrap()) {
				continue
			}

			if end.IsSome() && candle.Time.After(end.Unwrap()) {
				return
			}

			if !yield(candle, nil) {
				return
			}
		}
	}
}

// Count implements CandleSource.
func (s *SliceSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	count := 0

	for _, candle := range s.candles {
		if start.IsSome() && candle.Time.Before(start.Unwrap()) {
			continue
		}

		if end.IsSome() && candle.Time.After(end.Unwrap()) {
			break
		}

		count++
	}

	return count, nil
}

// Close implements CandleSource.
func (s *SliceSource) Close() error {
	return nil
}
