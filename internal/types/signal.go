package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/candlelab/replay/pkg/errors"
)

// Direction is the side of a simulated trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Sign returns +1 for long and -1 for short. Used in P&L math.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}

	return 1
}

// Signal is a directional trade suggestion produced by an external signal
// provider for a single candle. The replay core only consumes the numeric
// stop price; how it was derived (swing structure, ATR buffer, ...) is the
// provider's concern.
type Signal struct {
	// Time is the candle time the signal applies to.
	Time time.Time `yaml:"time" json:"time"`
	// Symbol is the asset the signal applies to.
	Symbol string `yaml:"symbol" json:"symbol" validate:"required"`
	// Direction is the suggested trade side.
	Direction Direction `yaml:"direction" json:"direction" validate:"required,oneof=LONG SHORT"`
	// StopPrice is the suggested protective stop for the entry.
	StopPrice float64 `yaml:"stop_price" json:"stop_price" validate:"required,gt=0"`
	// TakeProfits optionally overrides the configured risk-multiple targets
	// with explicit price levels, ordered nearest first.
	TakeProfits optional.Option[[]float64] `yaml:"take_profits" json:"take_profits"`
	// Reason is a free-form annotation carried through to the closed trade.
	Reason string `yaml:"reason" json:"reason"`
}

// Validate validates the Signal struct.
func (s *Signal) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSignal, "invalid signal", err)
	}

	if s.TakeProfits.IsSome() {
		levels := s.TakeProfits.Unwrap()
		for i, level := range levels {
			if level <= 0 {
				return errors.Newf(errors.ErrCodeInvalidSignal, "take profit level %d is non-positive: %f", i, level)
			}
		}
	}

	return nil
}
