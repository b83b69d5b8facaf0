package replay

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/types"
	"github.com/candlelab/replay/pkg/errors"
)

type SimulatorTestSuite struct {
	suite.Suite

	baseTime time.Time
}

func TestSimulatorSuite(t *testing.T) {
	suite.Run(t, new(SimulatorTestSuite))
}

func (suite *SimulatorTestSuite) SetupTest() {
	suite.baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
}

func (suite *SimulatorTestSuite) newConfig() Config {
	config := DefaultConfig()
	config.Symbol = "BTCUSDT"
	config.TakeProfitMultiples = []float64{2, 3}

	return config
}

func (suite *SimulatorTestSuite) newSimulator(config Config) (*Simulator, *RunState) {
	state := NewRunState(config)

	return NewSimulator(config, state, logger.NewTestLogger()), state
}

func (suite *SimulatorTestSuite) candle(minute int, open, high, low, close float64) types.Candle {
	return types.Candle{
		Time:   suite.baseTime.Add(time.Duration(minute) * time.Minute),
		Symbol: "BTCUSDT",
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 1000,
	}
}

func (suite *SimulatorTestSuite) longSignal(minute int, stopPrice float64) optional.Option[types.Signal] {
	return optional.Some(types.Signal{
		Time:        suite.baseTime.Add(time.Duration(minute) * time.Minute),
		Symbol:      "BTCUSDT",
		Direction:   types.DirectionLong,
		StopPrice:   stopPrice,
		TakeProfits: optional.None[[]float64](),
		Reason:      "test",
	})
}

func (suite *SimulatorTestSuite) shortSignal(minute int, stopPrice float64) optional.Option[types.Signal] {
	return optional.Some(types.Signal{
		Time:        suite.baseTime.Add(time.Duration(minute) * time.Minute),
		Symbol:      "BTCUSDT",
		Direction:   types.DirectionShort,
		StopPrice:   stopPrice,
		TakeProfits: optional.None[[]float64](),
		Reason:      "test",
	})
}

func (suite *SimulatorTestSuite) noSignal() optional.Option[types.Signal] {
	return optional.None[types.Signal]()
}

func (suite *SimulatorTestSuite) TestLongEntrySizedByRisk() {
	sim, state := suite.newSimulator(suite.newConfig())

	// Entry at close 100, stop 95: 5 per unit of risk. 2% of 10000 is 200,
	// so quantity is 40.
	err := sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95))
	suite.Require().NoError(err)

	suite.Require().Equal(1, state.OpenCount())

	position := state.OpenPositions()[0]
	suite.Assert().InDelta(40, position.Quantity, 1e-9)
	suite.Assert().InDelta(100, position.EntryPrice, 1e-9)
	suite.Require().Len(position.TakeProfits, 2)
	suite.Assert().InDelta(110, position.TakeProfits[0].Price, 1e-9)
	suite.Assert().InDelta(115, position.TakeProfits[1].Price, 1e-9)

	// No commission configured, so the cash balance is untouched and equity
	// equals balance at the entry candle's close.
	suite.Assert().InDelta(10000, state.Balance, 1e-9)
	suite.Require().Len(state.EquityCurve, 1)
	suite.Assert().InDelta(10000, state.EquityCurve[0].Equity, 1e-9)
}

func (suite *SimulatorTestSuite) TestPartialTakeProfitThenStop() {
	sim, state := suite.newSimulator(suite.newConfig())

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95)))

	// First target at 110 is touched: half the position (20 units) exits
	// for +200.
	suite.Require().NoError(sim.Advance(suite.candle(1, 100, 111, 100, 108), suite.noSignal()))

	position := state.OpenPositions()[0]
	suite.Assert().InDelta(20, position.RemainingQuantity, 1e-9)
	suite.Require().Len(position.PartialExits, 1)
	suite.Assert().Equal(types.ExitReasonTakeProfit, position.PartialExits[0].Reason)
	suite.Assert().Equal(1, position.PartialExits[0].Level)
	suite.Assert().InDelta(200, position.RealizedPnL, 1e-9)
	suite.Assert().InDelta(10200, state.Balance, 1e-9)

	// The stop at 95 takes out the remainder for -100.
	suite.Require().NoError(sim.Advance(suite.candle(2, 100, 100, 94, 96), suite.noSignal()))

	suite.Assert().Equal(0, state.OpenCount())
	suite.Require().Len(state.ClosedPositions(), 1)

	closed := state.ClosedPositions()[0]
	suite.Assert().Equal(types.ExitReasonStopLoss, closed.ExitReason)
	suite.Assert().InDelta(100, closed.RealizedPnL, 1e-9)
	suite.Assert().InDelta(10100, state.Balance, 1e-9)
}

func (suite *SimulatorTestSuite) TestFinalTargetClosesRemainder() {
	sim, state := suite.newSimulator(suite.newConfig())

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95)))

	// One candle sweeps through both targets: 110 closes 20 units, 115
	// closes the remaining 20 as the final level.
	suite.Require().NoError(sim.Advance(suite.candle(1, 100, 120, 100, 118), suite.noSignal()))

	suite.Assert().Equal(0, state.OpenCount())
	suite.Require().Len(state.ClosedPositions(), 1)

	closed := state.ClosedPositions()[0]
	suite.Require().Len(closed.PartialExits, 2)
	suite.Assert().Equal(1, closed.PartialExits[0].Level)
	suite.Assert().Equal(2, closed.PartialExits[1].Level)
	// +200 at 110 on half, +300 at 115 on the rest.
	suite.Assert().InDelta(500, closed.RealizedPnL, 1e-9)
	suite.Assert().InDelta(10500, state.Balance, 1e-9)
}

func (suite *SimulatorTestSuite) TestStopFirstTieBreak() {
	sim, state := suite.newSimulator(suite.newConfig())

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95)))

	// The candle touches both the stop (95) and the first target (110).
	// With stop-first the whole position is assumed stopped out.
	suite.Require().NoError(sim.Advance(suite.candle(1, 100, 111, 94, 96), suite.noSignal()))

	suite.Require().Len(state.ClosedPositions(), 1)

	closed := state.ClosedPositions()[0]
	suite.Assert().Equal(types.ExitReasonStopLoss, closed.ExitReason)
	suite.Assert().InDelta(-200, closed.RealizedPnL, 1e-9)
}

func (suite *SimulatorTestSuite) TestTakeProfitFirstTieBreak() {
	config := suite.newConfig()
	config.StopFirst = false

	sim, state := suite.newSimulator(config)

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95)))

	// Optimistic tie-break: the first target fills half at 110 (+200), then
	// the stop takes the remainder at 95 (-100).
	suite.Require().NoError(sim.Advance(suite.candle(1, 100, 111, 94, 96), suite.noSignal()))

	suite.Require().Len(state.ClosedPositions(), 1)

	closed := state.ClosedPositions()[0]
	suite.Assert().Equal(types.ExitReasonStopLoss, closed.ExitReason)
	suite.Assert().InDelta(100, closed.RealizedPnL, 1e-9)
}

func (suite *SimulatorTestSuite) TestShortPositionMirrors() {
	sim, state := suite.newSimulator(suite.newConfig())

	// Short from 100 with stop 105: targets at 90 and 85.
	suite.Require().NoError(sim.Advance(suite.candle(0, 101, 102, 99, 100), suite.shortSignal(0, 105)))

	position := state.OpenPositions()[0]
	suite.Assert().InDelta(40, position.Quantity, 1e-9)
	suite.Require().Len(position.TakeProfits, 2)
	suite.Assert().InDelta(90, position.TakeProfits[0].Price, 1e-9)
	suite.Assert().InDelta(85, position.TakeProfits[1].Price, 1e-9)

	// Price drops through the first target.
	suite.Require().NoError(sim.Advance(suite.candle(1, 100, 100, 89, 92), suite.noSignal()))

	suite.Assert().InDelta(200, state.OpenPositions()[0].RealizedPnL, 1e-9)

	// Price rips back through the stop: remainder closed at 105 for -100.
	suite.Require().NoError(sim.Advance(suite.candle(2, 92, 106, 92, 105), suite.noSignal()))

	suite.Require().Len(state.ClosedPositions(), 1)
	suite.Assert().InDelta(100, state.ClosedPositions()[0].RealizedPnL, 1e-9)
}

func (suite *SimulatorTestSuite) TestCommissionAccounting() {
	config := suite.newConfig()
	config.CommissionRate = 0.001

	sim, state := suite.newSimulator(config)

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95)))

	// Entry commission: 100 * 40 * 0.001 = 4.
	suite.Assert().InDelta(4, state.TotalEntryCommission, 1e-9)
	suite.Assert().InDelta(9996, state.Balance, 1e-9)

	// Full stop-out: exit commission 95 * 40 * 0.001 = 3.8,
	// realized -200 - 3.8 = -203.8.
	suite.Require().NoError(sim.Advance(suite.candle(1, 100, 100, 94, 96), suite.noSignal()))

	closed := state.ClosedPositions()[0]
	suite.Assert().InDelta(-203.8, closed.RealizedPnL, 1e-9)
	suite.Assert().InDelta(9792.2, state.Balance, 1e-9)

	// Final balance equals initial plus realized minus entry commissions.
	expected := 10000.0 + closed.RealizedPnL - state.TotalEntryCommission
	suite.Assert().InDelta(expected, state.Balance, 1e-9)
}

func (suite *SimulatorTestSuite) TestSlippageMovesFillsAdversely() {
	config := suite.newConfig()
	config.SlippageRate = 0.01

	sim, state := suite.newSimulator(config)

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95)))

	position := state.OpenPositions()[0]
	suite.Assert().InDelta(101, position.EntryPrice, 1e-9)
	// Risk per unit widens to 6, so the size shrinks to 200/6.
	suite.Assert().InDelta(200.0/6.0, position.Quantity, 1e-6)

	suite.Require().NoError(sim.Advance(suite.candle(1, 100, 100, 94, 96), suite.noSignal()))

	closed := state.ClosedPositions()[0]
	// Stop fill slips below the stop price.
	suite.Assert().InDelta(95*0.99, closed.ExitPrice, 1e-9)
}

func (suite *SimulatorTestSuite) TestDailyLossLimitBlocksEntries() {
	config := suite.newConfig()
	config.DailyLossLimit = 0.01

	sim, state := suite.newSimulator(config)

	// Lose 200 on the day: over the 100 limit.
	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95)))
	suite.Require().NoError(sim.Advance(suite.candle(1, 100, 100, 94, 96), suite.noSignal()))
	suite.Require().Len(state.ClosedPositions(), 1)

	// Same day: the new signal must be rejected.
	suite.Require().NoError(sim.Advance(suite.candle(2, 96, 97, 95, 96), suite.longSignal(2, 94)))
	suite.Assert().Equal(0, state.OpenCount())

	// Next day the limit resets.
	nextDay := suite.candle(24*60, 96, 97, 95, 96)
	sig := suite.longSignal(24*60, 94)
	suite.Require().NoError(sim.Advance(nextDay, sig))
	suite.Assert().Equal(1, state.OpenCount())
}

func (suite *SimulatorTestSuite) TestMaxConcurrentPositions() {
	config := suite.newConfig()
	config.MaxConcurrentPositions = 2
	config.EnableStopLoss = false
	config.EnableTakeProfit = false

	sim, state := suite.newSimulator(config)

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95)))
	suite.Require().NoError(sim.Advance(suite.candle(1, 100, 101, 99, 100), suite.longSignal(1, 95)))
	suite.Require().NoError(sim.Advance(suite.candle(2, 100, 101, 99, 100), suite.longSignal(2, 95)))

	suite.Assert().Equal(2, state.OpenCount())
}

func (suite *SimulatorTestSuite) TestWrongSideStopRejected() {
	sim, state := suite.newSimulator(suite.newConfig())

	// A long signal with the stop above the entry makes no sense.
	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 120)))

	suite.Assert().Equal(0, state.OpenCount())
}

func (suite *SimulatorTestSuite) TestMalformedCandleIsRecoverable() {
	sim, state := suite.newSimulator(suite.newConfig())

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.noSignal()))

	bad := suite.candle(1, 100, 90, 110, 100) // high below low

	err := sim.Advance(bad, suite.noSignal())
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeInvalidCandle))
	suite.Assert().True(errors.IsRecoverable(err))

	// Time advanced and the equity curve grew by a carried-forward point.
	suite.Assert().Equal(bad.Time, state.CurrentTime)
	suite.Require().Len(state.EquityCurve, 2)
	suite.Assert().InDelta(state.EquityCurve[0].Equity, state.EquityCurve[1].Equity, 1e-9)
}

func (suite *SimulatorTestSuite) TestExplicitTakeProfitLevels() {
	sim, state := suite.newSimulator(suite.newConfig())

	sig := optional.Some(types.Signal{
		Time:        suite.baseTime,
		Symbol:      "BTCUSDT",
		Direction:   types.DirectionLong,
		StopPrice:   95,
		TakeProfits: optional.Some([]float64{107, 103}),
		Reason:      "explicit levels",
	})

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), sig))

	position := state.OpenPositions()[0]
	suite.Require().Len(position.TakeProfits, 2)
	// Levels are reordered nearest first regardless of signal order.
	suite.Assert().InDelta(103, position.TakeProfits[0].Price, 1e-9)
	suite.Assert().InDelta(107, position.TakeProfits[1].Price, 1e-9)
	suite.Assert().InDelta(0.6, position.TakeProfits[0].RiskMultiple, 1e-9)
}

func (suite *SimulatorTestSuite) TestCloseAll() {
	sim, state := suite.newSimulator(suite.newConfig())

	suite.Require().NoError(sim.Advance(suite.candle(0, 99, 101, 98, 100), suite.longSignal(0, 95)))

	last := suite.candle(1, 100, 104, 100, 103)
	suite.Require().NoError(sim.Advance(last, suite.noSignal()))

	suite.Require().NoError(sim.CloseAll(last.Close, last.Time, types.ExitReasonEndOfData))

	suite.Assert().Equal(0, state.OpenCount())
	suite.Require().Len(state.ClosedPositions(), 1)

	closed := state.ClosedPositions()[0]
	suite.Assert().Equal(types.ExitReasonEndOfData, closed.ExitReason)
	suite.Assert().InDelta(120, closed.RealizedPnL, 1e-9)
}
