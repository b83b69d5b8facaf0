package types

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/candlelab/replay/pkg/errors"
)

// TradeStatistics summarizes the closed-trade history.
type TradeStatistics struct {
	// Counts.
	TotalTrades     int `yaml:"total_trades" json:"total_trades"`
	WinningTrades   int `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades    int `yaml:"losing_trades" json:"losing_trades"`
	BreakevenTrades int `yaml:"breakeven_trades" json:"breakeven_trades"`
	// WinRate is winning trades over total trades, 0 when there are none.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// Gross profit of winners and gross loss of losers (loss is positive).
	TotalProfit float64 `yaml:"total_profit" json:"total_profit"`
	TotalLoss   float64 `yaml:"total_loss" json:"total_loss"`
	NetPnL      float64 `yaml:"net_pnl" json:"net_pnl"`
	AverageWin  float64 `yaml:"average_win" json:"average_win"`
	AverageLoss float64 `yaml:"average_loss" json:"average_loss"`
	LargestWin  float64 `yaml:"largest_win" json:"largest_win"`
	LargestLoss float64 `yaml:"largest_loss" json:"largest_loss"`
	// ProfitFactor is total profit over total loss. When there are profits
	// but no losses it is +Inf (a sentinel, never a division panic); when
	// both are zero it is 0.
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`
	// Expectancy is the mean P&L per trade.
	Expectancy float64 `yaml:"expectancy" json:"expectancy"`
	// KellyCriterion = win_rate - (1 - win_rate) / win_loss_ratio.
	KellyCriterion float64 `yaml:"kelly_criterion" json:"kelly_criterion"`

	// R-multiple distribution (pnl over amount initially risked).
	AverageRMultiple float64 `yaml:"average_r_multiple" json:"average_r_multiple"`
	MedianRMultiple  float64 `yaml:"median_r_multiple" json:"median_r_multiple"`
	BestRMultiple    float64 `yaml:"best_r_multiple" json:"best_r_multiple"`
	WorstRMultiple   float64 `yaml:"worst_r_multiple" json:"worst_r_multiple"`

	// Streaks.
	LongestWinStreak  int `yaml:"longest_win_streak" json:"longest_win_streak"`
	LongestLossStreak int `yaml:"longest_loss_streak" json:"longest_loss_streak"`
	// CurrentStreak is positive for a run of wins, negative for losses.
	CurrentStreak int `yaml:"current_streak" json:"current_streak"`

	// Durations.
	AverageDuration     time.Duration `yaml:"average_duration" json:"average_duration"`
	AverageWinDuration  time.Duration `yaml:"average_win_duration" json:"average_win_duration"`
	AverageLossDuration time.Duration `yaml:"average_loss_duration" json:"average_loss_duration"`
}

// RiskStatistics summarizes drawdown and risk-adjusted return measures
// derived from the equity curve.
type RiskStatistics struct {
	MaxDrawdown        float64 `yaml:"max_drawdown" json:"max_drawdown"`
	MaxDrawdownPercent float64 `yaml:"max_drawdown_percent" json:"max_drawdown_percent"`
	// MaxDrawdownDuration is the number of equity-curve points between the
	// peak and the trough of the deepest decline.
	MaxDrawdownDuration int `yaml:"max_drawdown_duration" json:"max_drawdown_duration"`
	// RecoveryDuration is the number of points from the trough until equity
	// re-exceeded the prior peak; -1 if it never recovered.
	RecoveryDuration int `yaml:"recovery_duration" json:"recovery_duration"`

	SharpeRatio  float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	SortinoRatio float64 `yaml:"sortino_ratio" json:"sortino_ratio"`
	CalmarRatio  float64 `yaml:"calmar_ratio" json:"calmar_ratio"`

	// Historical daily-return VaR/CVaR, expressed as (typically negative)
	// return fractions.
	ValueAtRisk95            float64 `yaml:"value_at_risk_95" json:"value_at_risk_95"`
	ValueAtRisk99            float64 `yaml:"value_at_risk_99" json:"value_at_risk_99"`
	ConditionalValueAtRisk95 float64 `yaml:"conditional_value_at_risk_95" json:"conditional_value_at_risk_95"`
	ConditionalValueAtRisk99 float64 `yaml:"conditional_value_at_risk_99" json:"conditional_value_at_risk_99"`
}

// DirectionBreakdown is trade performance split by one trade direction.
type DirectionBreakdown struct {
	Trades  int     `yaml:"trades" json:"trades"`
	Wins    int     `yaml:"wins" json:"wins"`
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	NetPnL  float64 `yaml:"net_pnl" json:"net_pnl"`
}

// ExitReasonBreakdown is trade performance split by final exit reason.
// The key includes the take-profit level for TP exits (take_profit_1, ...).
type ExitReasonBreakdown struct {
	Trades  int     `yaml:"trades" json:"trades"`
	Wins    int     `yaml:"wins" json:"wins"`
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	NetPnL  float64 `yaml:"net_pnl" json:"net_pnl"`
}

// StrategyStatistics splits performance by direction and exit reason.
type StrategyStatistics struct {
	Long         DirectionBreakdown             `yaml:"long" json:"long"`
	Short        DirectionBreakdown             `yaml:"short" json:"short"`
	ByExitReason map[string]ExitReasonBreakdown `yaml:"by_exit_reason" json:"by_exit_reason"`
}

// ReturnStatistics summarizes the return distribution of the equity curve.
type ReturnStatistics struct {
	AnnualizedReturn   float64 `yaml:"annualized_return" json:"annualized_return"`
	MeanDailyReturn    float64 `yaml:"mean_daily_return" json:"mean_daily_return"`
	StdevDailyReturn   float64 `yaml:"stdev_daily_return" json:"stdev_daily_return"`
	MeanMonthlyReturn  float64 `yaml:"mean_monthly_return" json:"mean_monthly_return"`
	StdevMonthlyReturn float64 `yaml:"stdev_monthly_return" json:"stdev_monthly_return"`
	BestDay            float64 `yaml:"best_day" json:"best_day"`
	WorstDay           float64 `yaml:"worst_day" json:"worst_day"`
}

// ComprehensiveStatistics is the full performance report for a replay run.
// It is always computed fresh from the trade history and equity curve and
// never mutated in place.
type ComprehensiveStatistics struct {
	RunID       string    `yaml:"run_id" json:"run_id"`
	Symbol      string    `yaml:"symbol" json:"symbol"`
	GeneratedAt time.Time `yaml:"generated_at" json:"generated_at"`

	Trade    TradeStatistics    `yaml:"trade" json:"trade"`
	Risk     RiskStatistics     `yaml:"risk" json:"risk"`
	Strategy StrategyStatistics `yaml:"strategy" json:"strategy"`
	Return   ReturnStatistics   `yaml:"return" json:"return"`
}

// WriteStatistics writes a statistics report to a YAML file.
func WriteStatistics(path string, stats ComprehensiveStatistics) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStatsWriteFailed, "failed to marshal statistics to YAML", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeStatsWriteFailed, "failed to write statistics file", err)
	}

	return nil
}
