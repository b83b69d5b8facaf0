package types

import (
	"math"
	"time"

	"github.com/candlelab/replay/pkg/errors"
)

// Candle is one time bucket's open, high, low, close and volume for an asset.
type Candle struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Validate checks the candle for malformed data. A failing candle is a
// recoverable per-candle error: the replay loop skips trade logic for it but
// still advances simulated time.
func (c *Candle) Validate() error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Newf(errors.ErrCodeInvalidCandle, "candle at %s contains non-finite values", c.Time)
		}
	}

	if c.High < c.Low {
		return errors.Newf(errors.ErrCodeInvalidCandle, "candle at %s has high %f below low %f", c.Time, c.High, c.Low)
	}

	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.Newf(errors.ErrCodeInvalidCandle, "candle at %s has non-positive price", c.Time)
	}

	return nil
}
