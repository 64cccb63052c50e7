package riskmetrics

import (
	"math"

	"github.com/quantisle/papertrader/internal/indicators"
	"github.com/quantisle/papertrader/models"
)

// InfinitySentinel caps the ratios whose denominator side is empty, so
// every metric stays finite, serializable and comparable across runs
const InfinitySentinel = 999.0

// drawdownTolerance widens the max-drawdown trough into a band when
// measuring how long the curve sat there, in percentage points
const drawdownTolerance = 1.0

// Calculate scores a finished session from its trade ledger and equity
// curve. Degenerate inputs (empty or single-point curves, no closed
// trades) yield zero metrics, never NaN or infinities.
func Calculate(trades []models.Trade, equityCurve []models.EquitySnapshot, initialCapital float64) models.RiskMetrics {
	var m models.RiskMetrics

	returns := curveReturns(equityCurve)
	if len(returns) > 0 {
		meanReturn := indicators.Mean(returns)
		vol := indicators.StdDev(returns)

		m.Volatility = vol
		if vol > 0 {
			m.SharpeRatio = meanReturn / vol
		}
		m.SortinoRatio = sortino(returns, meanReturn)
		m.OmegaRatio = omega(returns, 0)
	}

	m.MaxDrawdown, m.MaxDrawdownDuration = drawdown(equityCurve)
	m.UlcerIndex = ulcer(equityCurve)

	if m.MaxDrawdown > 0 && len(returns) > 0 {
		m.CalmarRatio = indicators.Mean(returns) * 365 / m.MaxDrawdown
	}

	m.WinRate, m.AvgWin, m.AvgLoss = tradeStats(trades)
	if m.AvgLoss > 0 {
		m.WinLossRatio = m.AvgWin / m.AvgLoss
	} else if m.AvgWin > 0 {
		m.WinLossRatio = InfinitySentinel
	}
	m.Expectancy = m.WinRate*m.AvgWin - (1-m.WinRate)*m.AvgLoss

	if initialCapital > 0 && len(equityCurve) > 0 {
		final := equityCurve[len(equityCurve)-1].Value
		m.TotalReturn = (final - initialCapital) / initialCapital * 100
	}

	return m
}

// curveReturns converts the equity curve into point-to-point simple returns
func curveReturns(curve []models.EquitySnapshot) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (curve[i].Value-prev)/prev)
	}
	return returns
}

// sortino penalizes only downside dispersion. A curve with no losing
// periods but positive drift earns the capped sentinel.
func sortino(returns []float64, meanReturn float64) float64 {
	var downside float64
	for _, r := range returns {
		if r < 0 {
			downside += r * r
		}
	}
	if downside == 0 {
		if meanReturn > 0 {
			return InfinitySentinel
		}
		return 0
	}
	deviation := math.Sqrt(downside / float64(len(returns)))
	return meanReturn / deviation
}

// omega is the ratio of gains to losses relative to a threshold return
func omega(returns []float64, threshold float64) float64 {
	var gains, losses float64
	for _, r := range returns {
		excess := r - threshold
		if excess > 0 {
			gains += excess
		} else {
			losses -= excess
		}
	}
	if losses == 0 {
		if gains > 0 {
			return InfinitySentinel
		}
		return 0
	}
	return gains / losses
}

// drawdown walks the curve once for the maximum peak-to-trough decline
// and the longest stay near that trough. Duration is the widest
// timestamp span, in days, over contiguous snapshots whose drawdown is
// within the tolerance band of the maximum.
func drawdown(curve []models.EquitySnapshot) (float64, float64) {
	if len(curve) < 2 {
		return 0, 0
	}

	maxDD := 0.0
	peak := curve[0].Value
	dds := make([]float64, len(curve))
	for i, point := range curve {
		if point.Value > peak {
			peak = point.Value
		}
		if peak > 0 {
			dds[i] = (peak - point.Value) / peak * 100
		}
		if dds[i] > maxDD {
			maxDD = dds[i]
		}
	}
	if maxDD == 0 {
		return 0, 0
	}

	var maxDuration float64
	start := -1
	for i := range curve {
		inBand := dds[i] >= maxDD-drawdownTolerance
		if inBand && start < 0 {
			start = i
		}
		if (!inBand || i == len(curve)-1) && start >= 0 {
			end := i
			if !inBand {
				end = i - 1
			}
			span := curve[end].Timestamp.Sub(curve[start].Timestamp).Hours() / 24
			if span > maxDuration {
				maxDuration = span
			}
			start = -1
		}
	}
	return maxDD, maxDuration
}

// ulcer is the root mean square of the drawdown series over the whole
// curve, punishing depth and time underwater together
func ulcer(curve []models.EquitySnapshot) float64 {
	if len(curve) < 2 {
		return 0
	}
	peak := curve[0].Value
	var sumSquares float64
	for _, point := range curve {
		if point.Value > peak {
			peak = point.Value
		}
		if peak > 0 {
			dd := (peak - point.Value) / peak * 100
			sumSquares += dd * dd
		}
	}
	return math.Sqrt(sumSquares / float64(len(curve)))
}

// tradeStats derives the win profile from realized sell P&L
func tradeStats(trades []models.Trade) (winRate, avgWin, avgLoss float64) {
	var wins, losses []float64
	for _, t := range trades {
		if t.Type != models.TradeSell {
			continue
		}
		switch {
		case t.PnL > 0:
			wins = append(wins, t.PnL)
		case t.PnL < 0:
			losses = append(losses, -t.PnL)
		}
	}
	closed := len(wins) + len(losses)
	if closed == 0 {
		return 0, 0, 0
	}
	return float64(len(wins)) / float64(closed), indicators.Mean(wins), indicators.Mean(losses)
}
