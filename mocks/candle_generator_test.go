package mocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesValidCandles(t *testing.T) {
	gen := NewCandleGenerator(42)
	config := DefaultGeneratorConfig()
	config.Count = 500

	candles := gen.Generate(config)
	require.Len(t, candles, 500)

	for i, c := range candles {
		require.NoError(t, c.Validate(), "candle %d", i)
		assert.Equal(t, "TEST", c.Symbol)
		assert.GreaterOrEqual(t, c.High, c.Open)
		assert.GreaterOrEqual(t, c.High, c.Close)
		assert.LessOrEqual(t, c.Low, c.Open)
		assert.LessOrEqual(t, c.Low, c.Close)

		if i > 0 {
			assert.True(t, c.Time.After(candles[i-1].Time))
		}
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	config := DefaultGeneratorConfig()
	config.Count = 100

	first := NewCandleGenerator(7).Generate(config)
	second := NewCandleGenerator(7).Generate(config)

	assert.Equal(t, first, second)
}

func TestGenerateTrendingDrifts(t *testing.T) {
	gen := NewCandleGenerator(42)

	candles := gen.GenerateTrending("UPUP", 2000, 0.01)
	require.NotEmpty(t, candles)
	assert.Equal(t, "UPUP", candles[0].Symbol)
}

func BenchmarkGenerate10K(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Generate10K("BENCH")
	}
}
