package datasource

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/candlelab/replay/internal/types"
)

// CandleSource supplies the ordered candle sequence a replay run consumes.
type CandleSource interface {
	// Initialize points the source at a data file (CSV or Parquet).
	Initialize(path string) error
	// ReadAll returns an iterator over candles in ascending time order,
	// optionally bounded by a start and end time.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Candle, error) bool)
	// Count returns the number of candles in the optionally bounded range.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close releases the source's resources.
	Close() error
}
