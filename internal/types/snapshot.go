package types

import "time"

// PlaybackStatus is the observable state of a replay's playback loop.
type PlaybackStatus string

const (
	// PlaybackRunning means candles are being consumed.
	PlaybackRunning PlaybackStatus = "running"
	// PlaybackPaused means the loop is suspended awaiting a command.
	PlaybackPaused PlaybackStatus = "paused"
	// PlaybackStopped is terminal: the loop was cancelled by a command.
	PlaybackStopped PlaybackStatus = "stopped"
	// PlaybackCompleted is terminal: the candle sequence was exhausted.
	PlaybackCompleted PlaybackStatus = "completed"
)

// Terminal reports whether the status can no longer change.
func (s PlaybackStatus) Terminal() bool {
	return s == PlaybackStopped || s == PlaybackCompleted
}

// EquityPoint is one per-candle sample of the account's equity curve.
type EquityPoint struct {
	Time     time.Time `yaml:"time" json:"time"`
	Equity   float64   `yaml:"equity" json:"equity"`
	Balance  float64   `yaml:"balance" json:"balance"`
	Drawdown float64   `yaml:"drawdown" json:"drawdown"`
}

// Snapshot is a serializable copy of a replay's state emitted to result
// sinks. Snapshots never alias live state: every slice is a fresh copy and
// is safe to retain after emission.
type Snapshot struct {
	RunID           string         `json:"run_id" yaml:"run_id"`
	Symbol          string         `json:"symbol" yaml:"symbol"`
	Status          PlaybackStatus `json:"status" yaml:"status"`
	CurrentTime     time.Time      `json:"current_time" yaml:"current_time"`
	CandleIndex     int            `json:"current_candle_index" yaml:"current_candle_index"`
	TotalCandles    int            `json:"total_candles" yaml:"total_candles"`
	ProgressPercent float64        `json:"progress_percent" yaml:"progress_percent"`
	Speed           float64        `json:"speed" yaml:"speed"`

	Balance         float64 `json:"balance" yaml:"balance"`
	Equity          float64 `json:"equity" yaml:"equity"`
	Drawdown        float64 `json:"drawdown" yaml:"drawdown"`
	StartingBalance float64 `json:"starting_balance" yaml:"starting_balance"`

	OpenPositions []Position `json:"open_positions" yaml:"open_positions"`
	ClosedTrades  int        `json:"closed_trades" yaml:"closed_trades"`
	WinningTrades int        `json:"winning_trades" yaml:"winning_trades"`
	LosingTrades  int        `json:"losing_trades" yaml:"losing_trades"`

	LastCandle Candle `json:"last_candle" yaml:"last_candle"`
}
