package stats

import (
	"math"
	"sort"

	"github.com/candlelab/replay/internal/types"
)

// dailyReturns collapses the per-candle equity curve into one return per
// simulated calendar day: last equity of the day against last equity of
// the previous day, with the starting balance as day zero.
func dailyReturns(curve []types.EquityPoint, startingBalance float64) []float64 {
	closes := periodCloses(curve, "2006-01-02")

	return periodReturns(closes, startingBalance)
}

// monthlyReturns does the same per calendar month.
func monthlyReturns(curve []types.EquityPoint, startingBalance float64) []float64 {
	closes := periodCloses(curve, "2006-01")

	return periodReturns(closes, startingBalance)
}

// periodCloses returns the last equity value of each period, in curve
// order. The curve is time-ascending so the last point of a period wins.
func periodCloses(curve []types.EquityPoint, layout string) []float64 {
	var (
		closes  []float64
		lastKey string
	)

	for _, point := range curve {
		key := point.Time.UTC().Format(layout)
		if key == lastKey && len(closes) > 0 {
			closes[len(closes)-1] = point.Equity
		} else {
			closes = append(closes, point.Equity)
			lastKey = key
		}
	}

	return closes
}

func periodReturns(closes []float64, startingBalance float64) []float64 {
	returns := make([]float64, 0, len(closes))
	prev := startingBalance

	for _, close := range closes {
		if prev > 0 {
			returns = append(returns, close/prev-1)
		}

		prev = close
	}

	return returns
}

func computeRiskStats(curve []types.EquityPoint, daily []float64, startingBalance float64) types.RiskStatistics {
	maxDD, maxDDPercent, ddDuration, recovery := maxDrawdown(curve, startingBalance)

	annualized := annualizedReturn(curve, daily, startingBalance)

	stats := types.RiskStatistics{
		MaxDrawdown:              maxDD,
		MaxDrawdownPercent:       maxDDPercent,
		MaxDrawdownDuration:      ddDuration,
		RecoveryDuration:         recovery,
		SharpeRatio:              sharpe(daily),
		SortinoRatio:             sortino(daily),
		CalmarRatio:              0,
		ValueAtRisk95:            valueAtRisk(daily, 0.95),
		ValueAtRisk99:            valueAtRisk(daily, 0.99),
		ConditionalValueAtRisk95: conditionalValueAtRisk(daily, 0.95),
		ConditionalValueAtRisk99: conditionalValueAtRisk(daily, 0.99),
	}

	if maxDDPercent > 0 {
		stats.CalmarRatio = annualized / maxDDPercent
	}

	return stats
}

// maxDrawdown scans the curve for the deepest peak-to-trough equity drop.
// Durations are counted in curve points. Recovery is -1 when equity never
// regained the pre-drawdown peak.
func maxDrawdown(curve []types.EquityPoint, startingBalance float64) (maxDD, maxDDPercent float64, duration, recovery int) {
	if len(curve) == 0 {
		return 0, 0, 0, 0
	}

	peak := startingBalance
	peakIndex := 0
	troughIndex := -1

	for i, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
			peakIndex = i

			continue
		}

		dd := peak - point.Equity
		if dd > maxDD {
			maxDD = dd
			troughIndex = i
			duration = i - peakIndex

			if peak > 0 {
				maxDDPercent = dd / peak
			}
		}
	}

	if maxDD == 0 {
		return 0, 0, 0, 0
	}

	// Recovery: points from the trough until equity re-exceeds the peak
	// that preceded the deepest drawdown.
	priorPeak := startingBalance
	for i := 0; i < troughIndex; i++ {
		if curve[i].Equity > priorPeak {
			priorPeak = curve[i].Equity
		}
	}

	recovery = -1

	for i := troughIndex + 1; i < len(curve); i++ {
		if curve[i].Equity >= priorPeak {
			recovery = i - troughIndex

			break
		}
	}

	return maxDD, maxDDPercent, duration, recovery
}

// sharpe is mean over standard deviation of daily returns, annualized.
// Zero variance yields 0, not a division error.
func sharpe(daily []float64) float64 {
	if len(daily) == 0 {
		return 0
	}

	sd := stdev(daily)
	if sd == 0 {
		return 0
	}

	return mean(daily) / sd * math.Sqrt(tradingDaysPerYear)
}

// sortino replaces the denominator with downside deviation: the root mean
// square of negative returns only.
func sortino(daily []float64) float64 {
	if len(daily) == 0 {
		return 0
	}

	var sumSquares float64

	for _, r := range daily {
		if r < 0 {
			sumSquares += r * r
		}
	}

	downside := math.Sqrt(sumSquares / float64(len(daily)))
	if downside == 0 {
		return 0
	}

	return mean(daily) / downside * math.Sqrt(tradingDaysPerYear)
}

// valueAtRisk is the historical (1-confidence) quantile of daily returns.
func valueAtRisk(daily []float64, confidence float64) float64 {
	if len(daily) == 0 {
		return 0
	}

	sorted := append([]float64(nil), daily...)
	sort.Float64s(sorted)

	index := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}

// conditionalValueAtRisk is the mean of returns at or below the VaR
// quantile.
func conditionalValueAtRisk(daily []float64, confidence float64) float64 {
	if len(daily) == 0 {
		return 0
	}

	threshold := valueAtRisk(daily, confidence)

	var (
		sum   float64
		count int
	)

	for _, r := range daily {
		if r <= threshold {
			sum += r
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

func computeReturnStats(curve []types.EquityPoint, daily []float64, startingBalance float64) types.ReturnStatistics {
	monthly := monthlyReturns(curve, startingBalance)

	return types.ReturnStatistics{
		AnnualizedReturn:   annualizedReturn(curve, daily, startingBalance),
		MeanDailyReturn:    mean(daily),
		StdevDailyReturn:   stdev(daily),
		MeanMonthlyReturn:  mean(monthly),
		StdevMonthlyReturn: stdev(monthly),
		BestDay:            maxOf(daily),
		WorstDay:           minOf(daily),
	}
}

// annualizedReturn compounds the total return over the observed number of
// trading days up to a year.
func annualizedReturn(curve []types.EquityPoint, daily []float64, startingBalance float64) float64 {
	if len(curve) == 0 || len(daily) == 0 || startingBalance <= 0 {
		return 0
	}

	final := curve[len(curve)-1].Equity
	if final <= 0 {
		return -1
	}

	total := final / startingBalance

	return math.Pow(total, tradingDaysPerYear/float64(len(daily))) - 1
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// stdev is the population standard deviation.
func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)

	var sumSquares float64

	for _, v := range values {
		d := v - m
		sumSquares += d * d
	}

	return math.Sqrt(sumSquares / float64(len(values)))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}

	return best
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	worst := values[0]
	for _, v := range values[1:] {
		if v < worst {
			worst = v
		}
	}

	return worst
}
