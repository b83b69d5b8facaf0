package types

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason is the closed set of reasons a position (or part of it) was closed.
type ExitReason string

const (
	ExitReasonStopLoss   ExitReason = "stop_loss"
	ExitReasonTakeProfit ExitReason = "take_profit"
	ExitReasonManual     ExitReason = "manual"
	ExitReasonEndOfData  ExitReason = "end_of_data"
)

// TakeProfitLevel is one pending profit target of a position, expressed both
// as an absolute price and as the risk multiple it was derived from. Levels
// are kept ordered by ascending risk multiple and removed once hit.
type TakeProfitLevel struct {
	Price        float64 `yaml:"price" json:"price"`
	RiskMultiple float64 `yaml:"risk_multiple" json:"risk_multiple"`
}

// PartialExit records one fractional close applied to a position.
type PartialExit struct {
	// Fraction of the original quantity closed by this exit.
	Fraction float64 `yaml:"fraction" json:"fraction"`
	// Quantity closed, in asset units.
	Quantity float64 `yaml:"quantity" json:"quantity"`
	// Price the closed quantity was filled at (slippage already applied).
	Price float64 `yaml:"price" json:"price"`
	// Time of the candle that triggered the exit.
	Time time.Time `yaml:"time" json:"time"`
	// Reason for this exit.
	Reason ExitReason `yaml:"reason" json:"reason"`
	// Level is the 1-based take-profit level index, 0 for non-TP exits.
	Level int `yaml:"level" json:"level"`
	// PnL realized by this exit, net of exit commission.
	PnL float64 `yaml:"pnl" json:"pnl"`
}

// Position is one simulated trade from entry to (possibly partial) exits.
// It is created when a signal is accepted, mutated only by the simulation
// core during exit evaluation, and immutable once Closed is set.
type Position struct {
	ID        string    `yaml:"id" json:"id"`
	Symbol    string    `yaml:"symbol" json:"symbol"`
	Direction Direction `yaml:"direction" json:"direction"`
	// EntryPrice is the fill price including adverse slippage.
	EntryPrice float64   `yaml:"entry_price" json:"entry_price"`
	EntryTime  time.Time `yaml:"entry_time" json:"entry_time"`
	// Quantity is the original position size; RemainingQuantity shrinks with
	// each partial exit. Sum of closed quantity never exceeds Quantity.
	Quantity          float64 `yaml:"quantity" json:"quantity"`
	RemainingQuantity float64 `yaml:"remaining_quantity" json:"remaining_quantity"`
	// StopPrice is the currently active stop; InitialStopPrice is the stop at
	// entry and defines the R unit for R-multiple reporting.
	StopPrice        float64 `yaml:"stop_price" json:"stop_price"`
	InitialStopPrice float64 `yaml:"initial_stop_price" json:"initial_stop_price"`
	// TakeProfits are the not-yet-hit targets, ascending by risk multiple.
	TakeProfits []TakeProfitLevel `yaml:"take_profits" json:"take_profits"`
	// PartialExits are the fractional closes applied so far, in order.
	PartialExits []PartialExit `yaml:"partial_exits" json:"partial_exits"`
	// RealizedPnL accumulates net P&L over all exits of this position.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
	// EntryCommission is the commission deducted from cash at entry.
	EntryCommission float64 `yaml:"entry_commission" json:"entry_commission"`
	// ExitCommission accumulates commissions deducted on exits.
	ExitCommission float64 `yaml:"exit_commission" json:"exit_commission"`
	// SignalReason is the annotation carried over from the entry signal.
	SignalReason string `yaml:"signal_reason" json:"signal_reason"`

	Closed     bool       `yaml:"closed" json:"closed"`
	ExitPrice  float64    `yaml:"exit_price" json:"exit_price"`
	ExitTime   time.Time  `yaml:"exit_time" json:"exit_time"`
	ExitReason ExitReason `yaml:"exit_reason" json:"exit_reason"`
}

// InitialRiskAmount is the amount risked at entry: the distance to the
// initial stop times the original quantity. It is the denominator of the
// trade's R-multiple.
func (p *Position) InitialRiskAmount() float64 {
	return math.Abs(p.EntryPrice-p.InitialStopPrice) * p.Quantity
}

// RMultiple expresses the position's realized P&L as a multiple of the
// amount originally risked. Returns 0 if the initial risk was zero.
func (p *Position) RMultiple() float64 {
	risk := p.InitialRiskAmount()
	if risk == 0 {
		return 0
	}

	return p.RealizedPnL / risk
}

// UnrealizedPnL marks the remaining quantity to the given price.
func (p *Position) UnrealizedPnL(markPrice float64) float64 {
	if p.Closed || p.RemainingQuantity == 0 {
		return 0
	}

	markDec := decimal.NewFromFloat(markPrice)
	entryDec := decimal.NewFromFloat(p.EntryPrice)
	qtyDec := decimal.NewFromFloat(p.RemainingQuantity)
	signDec := decimal.NewFromFloat(p.Direction.Sign())

	result, _ := markDec.Sub(entryDec).Mul(qtyDec).Mul(signDec).Float64()

	return result
}

// HoldingTime is the duration from entry to final exit. Zero until closed.
func (p *Position) HoldingTime() time.Duration {
	if !p.Closed {
		return 0
	}

	return p.ExitTime.Sub(p.EntryTime)
}
