package replay

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/types"
	"github.com/candlelab/replay/pkg/errors"
)

// quantityEpsilon is the threshold below which a remaining quantity is
// treated as fully closed.
const quantityEpsilon = 1e-9

// Simulator is the trade simulation core: deterministic candle-by-candle
// bookkeeping of positions and equity. It owns no goroutines and never
// blocks; the playback controller drives it one candle at a time.
type Simulator struct {
	config Config
	state  *RunState
	log    *logger.Logger
}

// NewSimulator creates a simulator bound to a run's config and state.
func NewSimulator(config Config, state *RunState, log *logger.Logger) *Simulator {
	return &Simulator{
		config: config,
		state:  state,
		log:    log,
	}
}

// Advance processes exactly one candle: exits first, then a possible new
// entry, then the per-candle equity mark. The order is fixed for
// reproducibility.
//
// A malformed candle yields a recoverable error: trade logic is skipped but
// simulated time still advances and an equity point is still appended.
// Ledger invariant violations are fatal and propagate.
func (s *Simulator) Advance(candle types.Candle, signal optional.Option[types.Signal]) error {
	if err := candle.Validate(); err != nil {
		s.state.CurrentTime = candle.Time
		s.appendCarriedEquity(candle.Time)

		return err
	}

	s.state.CurrentTime = candle.Time
	s.state.LastCandle = candle

	if err := s.evaluateExits(candle); err != nil {
		return err
	}

	if signal.IsSome() {
		s.evaluateEntry(candle, signal.Unwrap())
	}

	s.state.MarkEquity(candle.Time, candle.Close)

	return nil
}

// appendCarriedEquity appends an equity point that carries the previous
// mark forward, keeping the curve's length equal to the number of candles
// processed even when a candle was rejected.
func (s *Simulator) appendCarriedEquity(t time.Time) {
	var equity, balance, drawdown float64

	if n := len(s.state.EquityCurve); n > 0 {
		prev := s.state.EquityCurve[n-1]
		equity, balance, drawdown = prev.Equity, prev.Balance, prev.Drawdown
	} else {
		equity, balance, drawdown = s.state.Balance, s.state.Balance, 0
	}

	s.state.EquityCurve = append(s.state.EquityCurve, types.EquityPoint{
		Time:     t,
		Equity:   equity,
		Balance:  balance,
		Drawdown: drawdown,
	})
}

// evaluateExits runs stop-loss and take-profit checks on every open
// position, in position-open order, before any new entry is considered.
//
// Same-candle collisions between the stop and a take-profit level are
// resolved by Config.StopFirst (default true): the intrabar path is
// unknown, so the stop is assumed to have been hit first. This is a
// modeling assumption, not an inference from the data.
func (s *Simulator) evaluateExits(candle types.Candle) error {
	for _, p := range s.state.OpenPositions() {
		stopHit := s.config.EnableStopLoss && stopTriggered(p, candle)

		var hitLevels []types.TakeProfitLevel
		if s.config.EnableTakeProfit {
			hitLevels = triggeredLevels(p, candle)
		}

		if stopHit && (s.config.StopFirst || len(hitLevels) == 0) {
			if err := s.closePortion(p, p.RemainingQuantity, s.stopFillPrice(p), candle.Time, types.ExitReasonStopLoss, 0); err != nil {
				return err
			}

			continue
		}

		// Take-profit levels are consumed in ascending risk-multiple order.
		// Every level except the position's last closes the configured
		// fraction of the original quantity; the last closes the remainder.
		for _, level := range hitLevels {
			if p.Closed {
				break
			}

			levelIndex := nextLevelNumber(p)

			closeQty := s.config.PartialExitFraction * p.Quantity
			if len(p.TakeProfits) == 1 || closeQty > p.RemainingQuantity {
				closeQty = p.RemainingQuantity
			}

			removeLevel(p, level)

			if err := s.closePortion(p, closeQty, level.Price, candle.Time, types.ExitReasonTakeProfit, levelIndex); err != nil {
				return err
			}
		}

		if stopHit && !p.Closed {
			if err := s.closePortion(p, p.RemainingQuantity, s.stopFillPrice(p), candle.Time, types.ExitReasonStopLoss, 0); err != nil {
				return err
			}
		}
	}

	return nil
}

// stopTriggered reports whether the candle's range crossed the stop.
func stopTriggered(p *types.Position, candle types.Candle) bool {
	if p.Direction == types.DirectionLong {
		return candle.Low <= p.StopPrice
	}

	return candle.High >= p.StopPrice
}

// triggeredLevels returns the pending take-profit levels crossed by the
// candle, in the stored ascending risk-multiple order.
func triggeredLevels(p *types.Position, candle types.Candle) []types.TakeProfitLevel {
	var hit []types.TakeProfitLevel

	for _, level := range p.TakeProfits {
		if p.Direction == types.DirectionLong && candle.High >= level.Price {
			hit = append(hit, level)
		}

		if p.Direction == types.DirectionShort && candle.Low <= level.Price {
			hit = append(hit, level)
		}
	}

	return hit
}

// nextLevelNumber returns the 1-based ladder position of the next
// take-profit exit, derived from exits already taken.
func nextLevelNumber(p *types.Position) int {
	n := 1

	for _, exit := range p.PartialExits {
		if exit.Reason == types.ExitReasonTakeProfit {
			n++
		}
	}

	return n
}

func removeLevel(p *types.Position, level types.TakeProfitLevel) {
	for i, l := range p.TakeProfits {
		if l == level {
			p.TakeProfits = append(p.TakeProfits[:i], p.TakeProfits[i+1:]...)

			return
		}
	}
}

// stopFillPrice is the stop price adjusted adversely by slippage. Stops
// fill into a moving market; take-profit levels fill at their limit price
// and carry no slippage.
func (s *Simulator) stopFillPrice(p *types.Position) float64 {
	if p.Direction == types.DirectionLong {
		return p.StopPrice * (1 - s.config.SlippageRate)
	}

	return p.StopPrice * (1 + s.config.SlippageRate)
}

// closePortion books a full or partial close: realized P&L net of exit
// commission, cash balance, the day bucket, and the position's exit trail.
// Closing more quantity than the position holds is a fatal ledger error.
func (s *Simulator) closePortion(p *types.Position, quantity, price float64, t time.Time, reason types.ExitReason, level int) error {
	if quantity <= 0 {
		return nil
	}

	if quantity > p.RemainingQuantity+quantityEpsilon {
		return errors.Newf(errors.ErrCodeLedgerInvariant,
			"position %s: closing %f exceeds remaining %f", p.ID, quantity, p.RemainingQuantity)
	}

	priceDec := decimal.NewFromFloat(price)
	entryDec := decimal.NewFromFloat(p.EntryPrice)
	qtyDec := decimal.NewFromFloat(quantity)
	signDec := decimal.NewFromFloat(p.Direction.Sign())

	commissionDec := priceDec.Mul(qtyDec).Mul(decimal.NewFromFloat(s.config.CommissionRate))
	pnlDec := priceDec.Sub(entryDec).Mul(qtyDec).Mul(signDec).Sub(commissionDec)

	pnl, _ := pnlDec.Float64()
	commission, _ := commissionDec.Float64()

	remaining, _ := decimal.NewFromFloat(p.RemainingQuantity).Sub(qtyDec).Float64()
	if remaining < quantityEpsilon {
		remaining = 0
	}

	p.RemainingQuantity = remaining
	p.RealizedPnL += pnl
	p.ExitCommission += commission
	p.PartialExits = append(p.PartialExits, types.PartialExit{
		Fraction: quantity / p.Quantity,
		Quantity: quantity,
		Price:    price,
		Time:     t,
		Reason:   reason,
		Level:    level,
		PnL:      pnl,
	})

	newBalance, _ := decimal.NewFromFloat(s.state.Balance).Add(pnlDec).Float64()
	s.state.Balance = newBalance
	s.state.RecordRealized(t, pnl)

	s.log.Debug("Position exit booked",
		zap.String("position_id", p.ID),
		zap.String("reason", string(reason)),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
		zap.Float64("pnl", pnl),
	)

	if p.RemainingQuantity == 0 {
		p.Closed = true
		p.ExitPrice = price
		p.ExitTime = t
		p.ExitReason = reason
		s.state.RemovePosition(p.ID)
	}

	return nil
}

// evaluateEntry opens a new position for the candle's signal if capacity
// and the daily loss limit allow it. Rejections are logged, never fatal:
// existing positions keep being managed regardless.
func (s *Simulator) evaluateEntry(candle types.Candle, signal types.Signal) {
	if err := signal.Validate(); err != nil {
		s.log.Warn("Signal rejected", zap.Error(err))

		return
	}

	if s.state.OpenCount() >= s.config.MaxConcurrentPositions {
		s.log.Debug("Entry blocked: max concurrent positions reached",
			zap.Int("open", s.state.OpenCount()),
			zap.Int("max", s.config.MaxConcurrentPositions),
		)

		return
	}

	if s.dailyLimitBreached(candle.Time) {
		s.log.Debug("Entry blocked: daily loss limit breached",
			zap.String("day", DayKey(candle.Time)),
			zap.Float64("daily_pnl", s.state.DailyRealized(candle.Time)),
		)

		return
	}

	entryPrice := s.entryFillPrice(candle.Close, signal.Direction)

	riskPerUnit := math.Abs(entryPrice - signal.StopPrice)
	if riskPerUnit < quantityEpsilon {
		s.log.Warn("Entry rejected: stop price equals entry price",
			zap.Float64("entry_price", entryPrice),
			zap.Float64("stop_price", signal.StopPrice),
		)

		return
	}

	if !stopOnProtectiveSide(signal.Direction, entryPrice, signal.StopPrice) {
		s.log.Warn("Entry rejected: stop on wrong side of entry",
			zap.String("direction", string(signal.Direction)),
			zap.Float64("entry_price", entryPrice),
			zap.Float64("stop_price", signal.StopPrice),
		)

		return
	}

	qtyDec := decimal.NewFromFloat(s.state.Balance).
		Mul(decimal.NewFromFloat(s.config.RiskPerTrade)).
		Div(decimal.NewFromFloat(riskPerUnit))

	quantity, _ := qtyDec.Float64()
	if quantity <= 0 {
		s.log.Warn("Entry rejected: computed quantity is zero",
			zap.Float64("balance", s.state.Balance),
		)

		return
	}

	commissionDec := decimal.NewFromFloat(entryPrice).Mul(qtyDec).Mul(decimal.NewFromFloat(s.config.CommissionRate))
	commission, _ := commissionDec.Float64()

	newBalance, _ := decimal.NewFromFloat(s.state.Balance).Sub(commissionDec).Float64()
	s.state.Balance = newBalance
	s.state.TotalEntryCommission += commission

	position := &types.Position{
		ID:                uuid.New().String(),
		Symbol:            candle.Symbol,
		Direction:         signal.Direction,
		EntryPrice:        entryPrice,
		EntryTime:         candle.Time,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		StopPrice:         signal.StopPrice,
		InitialStopPrice:  signal.StopPrice,
		TakeProfits:       s.buildTargets(signal, entryPrice, riskPerUnit),
		PartialExits:      nil,
		RealizedPnL:       0,
		EntryCommission:   commission,
		ExitCommission:    0,
		SignalReason:      signal.Reason,
		Closed:            false,
		ExitPrice:         0,
		ExitTime:          time.Time{},
		ExitReason:        "",
	}

	s.state.AddPosition(position)

	s.log.Debug("Position opened",
		zap.String("position_id", position.ID),
		zap.String("direction", string(signal.Direction)),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("quantity", quantity),
		zap.Float64("stop_price", signal.StopPrice),
	)
}

// dailyLimitBreached reports whether the day's cumulative realized loss has
// reached the configured fraction of the starting balance.
func (s *Simulator) dailyLimitBreached(t time.Time) bool {
	if s.config.DailyLossLimit <= 0 {
		return false
	}

	limit := s.config.DailyLossLimit * s.state.StartingBalance

	return s.state.DailyRealized(t) <= -limit
}

// entryFillPrice is the candle close moved adversely by slippage.
func (s *Simulator) entryFillPrice(closePrice float64, direction types.Direction) float64 {
	if direction == types.DirectionLong {
		return closePrice * (1 + s.config.SlippageRate)
	}

	return closePrice * (1 - s.config.SlippageRate)
}

// stopOnProtectiveSide checks the stop sits below a long entry or above a
// short entry.
func stopOnProtectiveSide(direction types.Direction, entryPrice, stopPrice float64) bool {
	if direction == types.DirectionLong {
		return stopPrice < entryPrice
	}

	return stopPrice > entryPrice
}

// buildTargets derives the take-profit ladder: explicit levels from the
// signal when present, otherwise the configured risk multiples. The ladder
// is kept ascending by risk multiple.
func (s *Simulator) buildTargets(signal types.Signal, entryPrice, riskPerUnit float64) []types.TakeProfitLevel {
	sign := signal.Direction.Sign()

	var targets []types.TakeProfitLevel

	if signal.TakeProfits.IsSome() {
		for _, price := range signal.TakeProfits.Unwrap() {
			multiple := (price - entryPrice) * sign / riskPerUnit
			if multiple <= 0 {
				s.log.Warn("Ignoring take profit level on wrong side of entry",
					zap.Float64("price", price),
				)

				continue
			}

			targets = append(targets, types.TakeProfitLevel{Price: price, RiskMultiple: multiple})
		}
	} else {
		for _, multiple := range s.config.TakeProfitMultiples {
			targets = append(targets, types.TakeProfitLevel{
				Price:        entryPrice + sign*multiple*riskPerUnit,
				RiskMultiple: multiple,
			})
		}
	}

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].RiskMultiple < targets[j].RiskMultiple
	})

	return targets
}

// CloseAll closes every open position at the given price. Used when the
// candle sequence is exhausted so the final report covers all trades.
func (s *Simulator) CloseAll(price float64, t time.Time, reason types.ExitReason) error {
	for _, p := range s.state.OpenPositions() {
		if err := s.closePortion(p, p.RemainingQuantity, price, t, reason, 0); err != nil {
			return err
		}
	}

	return nil
}
