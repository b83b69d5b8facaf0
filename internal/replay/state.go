package replay

import (
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/candlelab/replay/internal/types"
)

// RunState is the mutable state of one replay run. It has exactly one
// owner, the playback loop; everything outside the loop observes it through
// Snapshot copies.
type RunState struct {
	RunID           string
	Symbol          string
	StartingBalance float64
	Balance         float64

	CurrentTime time.Time
	LastCandle  types.Candle

	// Open positions keyed by id, with insertion order kept separately so
	// exit evaluation iterates deterministically.
	open      map[string]*types.Position
	openOrder []string

	Closed      []types.Position
	EquityCurve []types.EquityPoint
	PeakEquity  float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int

	// DailyRealizedPnL buckets realized P&L by simulated calendar day.
	DailyRealizedPnL map[string]float64
	// TotalEntryCommission accumulates commissions deducted at entry; exit
	// commissions are already netted into each position's realized P&L.
	TotalEntryCommission float64

	// Playback fields, mutated only at controller checkpoints.
	Status       types.PlaybackStatus
	CandleIndex  int
	TotalCandles int
	SeekTarget   optional.Option[int]
	StepRequest  bool
	Speed        float64
}

// NewRunState creates the state for a fresh run.
func NewRunState(config Config) *RunState {
	return &RunState{
		RunID:                uuid.New().String(),
		Symbol:               config.Symbol,
		StartingBalance:      config.InitialBalance,
		Balance:              config.InitialBalance,
		CurrentTime:          time.Time{},
		LastCandle:           types.Candle{},
		open:                 make(map[string]*types.Position),
		openOrder:            nil,
		Closed:               nil,
		EquityCurve:          nil,
		PeakEquity:           config.InitialBalance,
		TotalTrades:          0,
		WinningTrades:        0,
		LosingTrades:         0,
		DailyRealizedPnL:     make(map[string]float64),
		TotalEntryCommission: 0,
		Status:               types.PlaybackRunning,
		CandleIndex:          0,
		TotalCandles:         0,
		SeekTarget:           optional.None[int](),
		StepRequest:          false,
		Speed:                config.Speed,
	}
}

// DayKey buckets a simulated timestamp into its calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// OpenPositions returns the open positions in insertion order.
func (s *RunState) OpenPositions() []*types.Position {
	positions := make([]*types.Position, 0, len(s.openOrder))
	for _, id := range s.openOrder {
		positions = append(positions, s.open[id])
	}

	return positions
}

// OpenCount returns the number of open positions.
func (s *RunState) OpenCount() int {
	return len(s.openOrder)
}

// AddPosition registers a newly opened position.
func (s *RunState) AddPosition(p *types.Position) {
	s.open[p.ID] = p
	s.openOrder = append(s.openOrder, p.ID)
}

// RemovePosition moves a fully closed position to the history and updates
// the win/loss counters.
func (s *RunState) RemovePosition(id string) {
	p, ok := s.open[id]
	if !ok {
		return
	}

	delete(s.open, id)

	for i, openID := range s.openOrder {
		if openID == id {
			s.openOrder = append(s.openOrder[:i], s.openOrder[i+1:]...)

			break
		}
	}

	s.Closed = append(s.Closed, *p)
	s.TotalTrades++

	switch {
	case p.RealizedPnL > 0:
		s.WinningTrades++
	case p.RealizedPnL < 0:
		s.LosingTrades++
	}
}

// RecordRealized books realized P&L into the day bucket of the given time.
func (s *RunState) RecordRealized(t time.Time, pnl float64) {
	s.DailyRealizedPnL[DayKey(t)] += pnl
}

// DailyRealized returns the realized P&L booked so far for the day of t.
func (s *RunState) DailyRealized(t time.Time) float64 {
	return s.DailyRealizedPnL[DayKey(t)]
}

// Equity computes balance plus unrealized P&L of all open positions marked
// to the given price.
func (s *RunState) Equity(markPrice float64) float64 {
	equity := decimal.NewFromFloat(s.Balance)
	for _, id := range s.openOrder {
		equity = equity.Add(decimal.NewFromFloat(s.open[id].UnrealizedPnL(markPrice)))
	}

	result, _ := equity.Float64()

	return result
}

// MarkEquity appends one equity-curve point for the candle at t, updating
// the running peak and drawdown. Called exactly once per processed candle.
func (s *RunState) MarkEquity(t time.Time, markPrice float64) types.EquityPoint {
	equity := s.Equity(markPrice)
	if equity > s.PeakEquity {
		s.PeakEquity = equity
	}

	drawdown := s.PeakEquity - equity
	if drawdown < 0 {
		drawdown = 0
	}

	point := types.EquityPoint{
		Time:     t,
		Equity:   equity,
		Balance:  s.Balance,
		Drawdown: drawdown,
	}
	s.EquityCurve = append(s.EquityCurve, point)

	return point
}

// Snapshot builds a deep copy of the externally observable state. The copy
// never aliases loop-owned memory.
func (s *RunState) Snapshot() types.Snapshot {
	openCopies := make([]types.Position, 0, len(s.openOrder))

	for _, id := range s.openOrder {
		p := *s.open[id]
		p.TakeProfits = append([]types.TakeProfitLevel(nil), p.TakeProfits...)
		p.PartialExits = append([]types.PartialExit(nil), p.PartialExits...)
		openCopies = append(openCopies, p)
	}

	var equity, drawdown float64
	if n := len(s.EquityCurve); n > 0 {
		equity = s.EquityCurve[n-1].Equity
		drawdown = s.EquityCurve[n-1].Drawdown
	} else {
		equity = s.Balance
	}

	progress := 0.0
	if s.TotalCandles > 0 {
		progress = float64(s.CandleIndex) / float64(s.TotalCandles) * 100
	}

	return types.Snapshot{
		RunID:           s.RunID,
		Symbol:          s.Symbol,
		Status:          s.Status,
		CurrentTime:     s.CurrentTime,
		CandleIndex:     s.CandleIndex,
		TotalCandles:    s.TotalCandles,
		ProgressPercent: progress,
		Speed:           s.Speed,
		Balance:         s.Balance,
		Equity:          equity,
		Drawdown:        drawdown,
		StartingBalance: s.StartingBalance,
		OpenPositions:   openCopies,
		ClosedTrades:    s.TotalTrades,
		WinningTrades:   s.WinningTrades,
		LosingTrades:    s.LosingTrades,
		LastCandle:      s.LastCandle,
	}
}

// ClosedPositions returns a copy of the closed-position history.
func (s *RunState) ClosedPositions() []types.Position {
	return append([]types.Position(nil), s.Closed...)
}

// EquityCurveCopy returns a copy of the equity curve.
func (s *RunState) EquityCurveCopy() []types.EquityPoint {
	return append([]types.EquityPoint(nil), s.EquityCurve...)
}
