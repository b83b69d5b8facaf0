package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/candlelab/replay/internal/types"
)

// CandleGenerator produces realistic candle series for tests and benchmarks.
type CandleGenerator struct {
	rng *rand.Rand
}

// NewCandleGenerator creates a generator with the given seed. Use a fixed
// seed for reproducible results in tests.
func NewCandleGenerator(seed int64) *CandleGenerator {
	return &CandleGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how candles are generated.
type GeneratorConfig struct {
	// Symbol is the asset symbol stamped on every candle.
	Symbol string
	// StartTime is the time of the first candle.
	StartTime time.Time
	// Interval is the duration between candles.
	Interval time.Duration
	// Count is the number of candles to generate.
	Count int
	// InitialPrice is the starting price.
	InitialPrice float64
	// Volatility controls price movement per candle (0.002 = 0.2%).
	Volatility float64
	// Trend is the total drift over the series (-0.01 to 0.01 for bearish
	// to bullish).
	Trend float64
	// VolumeBase is the average volume per candle.
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0).
	VolumeVariance float64
}

// DefaultGeneratorConfig returns a sensible default configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "TEST",
		StartTime:      time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
		Interval:       time.Minute,
		Count:          1000,
		InitialPrice:   100.0,
		Volatility:     0.002,
		Trend:          0.0,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// Generate creates a candle series following a geometric Brownian motion
// model. Candles come out in ascending time order with valid OHLC bounds.
func (g *CandleGenerator) Generate(config GeneratorConfig) []types.Candle {
	candles := make([]types.Candle, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice

		// Box-Muller transform for a normally distributed shock.
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		priceChange := config.Volatility * z
		drift := config.Trend / float64(config.Count)

		close := open * (1 + priceChange + drift)
		if close <= 0 {
			close = open * 0.99
		}

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, close) + highExtension

		low := math.Min(open, close) - lowExtension
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance

		volume := config.VolumeBase * volumeVariation
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		candles[i] = types.Candle{
			Time:   currentTime,
			Symbol: config.Symbol,
			Open:   roundToDecimals(open, 4),
			High:   roundToDecimals(high, 4),
			Low:    roundToDecimals(low, 4),
			Close:  roundToDecimals(close, 4),
			Volume: roundToDecimals(volume, 2),
		}

		currentPrice = close
		currentTime = currentTime.Add(config.Interval)
	}

	return candles
}

// GenerateTrending is a convenience wrapper for a series with a fixed
// drift. A positive trend drifts the close upward over the series.
func (g *CandleGenerator) GenerateTrending(symbol string, count int, trend float64) []types.Candle {
	config := DefaultGeneratorConfig()
	config.Symbol = symbol
	config.Count = count
	config.Trend = trend

	return g.Generate(config)
}

// Generate10K generates 10,000 candles with default settings and a fixed
// seed, for benchmarking.
func Generate10K(symbol string) []types.Candle {
	gen := NewCandleGenerator(42)
	config := DefaultGeneratorConfig()
	config.Symbol = symbol
	config.Count = 10000

	return gen.Generate(config)
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
