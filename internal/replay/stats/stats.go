// Package stats computes performance statistics over a replay's closed
// trades and equity curve. Every function is pure: the same inputs always
// produce the same report, and degenerate inputs (no trades, flat equity,
// zero variance) produce documented sentinel values, never a panic.
package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/candlelab/replay/internal/types"
)

// tradingDaysPerYear is the annualization base for daily-return ratios.
const tradingDaysPerYear = 252

// Input is everything a report is computed from. The slices are not
// mutated.
type Input struct {
	RunID           string
	Symbol          string
	StartingBalance float64
	Closed          []types.Position
	EquityCurve     []types.EquityPoint
}

// Compute builds the full performance report.
func Compute(input Input) types.ComprehensiveStatistics {
	daily := dailyReturns(input.EquityCurve, input.StartingBalance)

	return types.ComprehensiveStatistics{
		RunID:       input.RunID,
		Symbol:      input.Symbol,
		GeneratedAt: time.Now().UTC(),
		Trade:       computeTradeStats(input.Closed),
		Risk:        computeRiskStats(input.EquityCurve, daily, input.StartingBalance),
		Strategy:    computeStrategyStats(input.Closed),
		Return:      computeReturnStats(input.EquityCurve, daily, input.StartingBalance),
	}
}

func computeTradeStats(closed []types.Position) types.TradeStatistics {
	stats := types.TradeStatistics{
		TotalTrades:         len(closed),
		WinningTrades:       0,
		LosingTrades:        0,
		BreakevenTrades:     0,
		WinRate:             0,
		TotalProfit:         0,
		TotalLoss:           0,
		NetPnL:              0,
		AverageWin:          0,
		AverageLoss:         0,
		LargestWin:          0,
		LargestLoss:         0,
		ProfitFactor:        0,
		Expectancy:          0,
		KellyCriterion:      0,
		AverageRMultiple:    0,
		MedianRMultiple:     0,
		BestRMultiple:       0,
		WorstRMultiple:      0,
		LongestWinStreak:    0,
		LongestLossStreak:   0,
		CurrentStreak:       0,
		AverageDuration:     0,
		AverageWinDuration:  0,
		AverageLossDuration: 0,
	}

	if len(closed) == 0 {
		return stats
	}

	var (
		totalDuration, winDuration, lossDuration time.Duration
		rMultiples                               []float64
	)

	for _, p := range closed {
		pnl := p.RealizedPnL
		stats.NetPnL += pnl
		totalDuration += p.HoldingTime()
		rMultiples = append(rMultiples, p.RMultiple())

		switch {
		case pnl > 0:
			stats.WinningTrades++
			stats.TotalProfit += pnl
			winDuration += p.HoldingTime()

			if pnl > stats.LargestWin {
				stats.LargestWin = pnl
			}
		case pnl < 0:
			stats.LosingTrades++
			stats.TotalLoss += -pnl
			lossDuration += p.HoldingTime()

			if -pnl > stats.LargestLoss {
				stats.LargestLoss = -pnl
			}
		default:
			stats.BreakevenTrades++
		}
	}

	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades)
	stats.Expectancy = stats.NetPnL / float64(stats.TotalTrades)
	stats.AverageDuration = totalDuration / time.Duration(stats.TotalTrades)

	if stats.WinningTrades > 0 {
		stats.AverageWin = stats.TotalProfit / float64(stats.WinningTrades)
		stats.AverageWinDuration = winDuration / time.Duration(stats.WinningTrades)
	}

	if stats.LosingTrades > 0 {
		stats.AverageLoss = stats.TotalLoss / float64(stats.LosingTrades)
		stats.AverageLossDuration = lossDuration / time.Duration(stats.LosingTrades)
	}

	stats.ProfitFactor = profitFactor(stats.TotalProfit, stats.TotalLoss)
	stats.KellyCriterion = kellyCriterion(stats.WinRate, stats.AverageWin, stats.AverageLoss)

	stats.AverageRMultiple = mean(rMultiples)
	stats.MedianRMultiple = median(rMultiples)
	stats.BestRMultiple = maxOf(rMultiples)
	stats.WorstRMultiple = minOf(rMultiples)

	stats.LongestWinStreak, stats.LongestLossStreak, stats.CurrentStreak = streaks(closed)

	return stats
}

// profitFactor is gross profit over gross loss. +Inf when there are
// profits but no losses, 0 when there is nothing at all.
func profitFactor(totalProfit, totalLoss float64) float64 {
	if totalLoss > 0 {
		return totalProfit / totalLoss
	}

	if totalProfit > 0 {
		return math.Inf(1)
	}

	return 0
}

// kellyCriterion = winRate - (1-winRate)/winLossRatio. When losses are
// absent the ratio is undefined and the win rate itself is the bound.
func kellyCriterion(winRate, averageWin, averageLoss float64) float64 {
	if averageLoss == 0 {
		return winRate
	}

	if averageWin == 0 {
		return winRate - (1 - winRate)
	}

	return winRate - (1-winRate)/(averageWin/averageLoss)
}

// streaks walks the close-ordered history. Breakeven trades end both
// streaks. The current streak is signed: positive wins, negative losses.
func streaks(closed []types.Position) (longestWin, longestLoss, current int) {
	winRun, lossRun := 0, 0

	for _, p := range closed {
		switch {
		case p.RealizedPnL > 0:
			winRun++
			lossRun = 0
			current = winRun
		case p.RealizedPnL < 0:
			lossRun++
			winRun = 0
			current = -lossRun
		default:
			winRun, lossRun, current = 0, 0, 0
		}

		if winRun > longestWin {
			longestWin = winRun
		}

		if lossRun > longestLoss {
			longestLoss = lossRun
		}
	}

	return longestWin, longestLoss, current
}

func computeStrategyStats(closed []types.Position) types.StrategyStatistics {
	stats := types.StrategyStatistics{
		Long:         types.DirectionBreakdown{Trades: 0, Wins: 0, WinRate: 0, NetPnL: 0},
		Short:        types.DirectionBreakdown{Trades: 0, Wins: 0, WinRate: 0, NetPnL: 0},
		ByExitReason: make(map[string]types.ExitReasonBreakdown),
	}

	for _, p := range closed {
		breakdown := &stats.Long
		if p.Direction == types.DirectionShort {
			breakdown = &stats.Short
		}

		breakdown.Trades++
		breakdown.NetPnL += p.RealizedPnL

		if p.RealizedPnL > 0 {
			breakdown.Wins++
		}

		key := exitReasonKey(p)
		entry := stats.ByExitReason[key]
		entry.Trades++
		entry.NetPnL += p.RealizedPnL

		if p.RealizedPnL > 0 {
			entry.Wins++
		}

		stats.ByExitReason[key] = entry
	}

	if stats.Long.Trades > 0 {
		stats.Long.WinRate = float64(stats.Long.Wins) / float64(stats.Long.Trades)
	}

	if stats.Short.Trades > 0 {
		stats.Short.WinRate = float64(stats.Short.Wins) / float64(stats.Short.Trades)
	}

	for key, entry := range stats.ByExitReason {
		entry.WinRate = float64(entry.Wins) / float64(entry.Trades)
		stats.ByExitReason[key] = entry
	}

	return stats
}

// exitReasonKey names the bucket a closed trade falls into. Take-profit
// closes are split by the level that finished the position.
func exitReasonKey(p types.Position) string {
	if p.ExitReason != types.ExitReasonTakeProfit {
		return string(p.ExitReason)
	}

	level := 0

	for _, exit := range p.PartialExits {
		if exit.Reason == types.ExitReasonTakeProfit && exit.Level > level {
			level = exit.Level
		}
	}

	if level == 0 {
		return string(p.ExitReason)
	}

	return fmt.Sprintf("%s_%d", p.ExitReason, level)
}
