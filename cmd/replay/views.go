package main

import (
	"fmt"
	"strings"
)

const progressBarWidth = 40

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	s := m.snapshot

	b.WriteString(TitleStyle.Render("Candle Replay"))
	b.WriteString("  " + s.Symbol + "  " + renderStatus(s.Status))
	b.WriteString("\n\n")

	b.WriteString(LabelStyle.Render("Progress"))
	b.WriteString(fmt.Sprintf("%s %d/%d (%.1f%%)\n",
		renderProgressBar(s.ProgressPercent), s.CandleIndex, s.TotalCandles, s.ProgressPercent))

	b.WriteString(LabelStyle.Render("Time"))

	if s.CurrentTime.IsZero() {
		b.WriteString("-\n")
	} else {
		b.WriteString(s.CurrentTime.UTC().Format("2006-01-02 15:04:05") + "\n")
	}

	b.WriteString(LabelStyle.Render("Speed"))
	b.WriteString(fmt.Sprintf("%gx\n\n", s.Speed))

	b.WriteString(LabelStyle.Render("Balance"))
	b.WriteString(fmt.Sprintf("%.2f\n", s.Balance))
	b.WriteString(LabelStyle.Render("Equity"))
	b.WriteString(fmt.Sprintf("%.2f\n", s.Equity))
	b.WriteString(LabelStyle.Render("Drawdown"))
	b.WriteString(fmt.Sprintf("%.2f\n", s.Drawdown))
	b.WriteString(LabelStyle.Render("Closed trades"))
	b.WriteString(fmt.Sprintf("%d (%dW / %dL)\n\n", s.ClosedTrades, s.WinningTrades, s.LosingTrades))

	b.WriteString(m.renderPositions())

	if s.CandleIndex > 0 {
		b.WriteString(LabelStyle.Render("Last candle"))
		b.WriteString(fmt.Sprintf("O %.2f  H %.2f  L %.2f  C %.2f  V %.0f\n",
			s.LastCandle.Open, s.LastCandle.High, s.LastCandle.Low, s.LastCandle.Close, s.LastCandle.Volume))
	}

	if m.seeking {
		b.WriteString("\nSeek to: " + m.seekInput.View() + "\n")
	}

	if m.err != nil {
		b.WriteString("\n" + ErrorStyle.Render(m.err.Error()) + "\n")
	} else if m.notice != "" {
		b.WriteString("\n" + m.notice + "\n")
	}

	b.WriteString("\n" + HelpStyle.Render("space pause/resume · s step · +/- speed · g seek · q quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderPositions() string {
	s := m.snapshot

	if len(s.OpenPositions) == 0 {
		return LabelStyle.Render("Positions") + "none\n\n"
	}

	var b strings.Builder

	b.WriteString(LabelStyle.Render("Positions"))
	b.WriteString(fmt.Sprintf("%d open\n", len(s.OpenPositions)))

	for _, p := range s.OpenPositions {
		unrealized := p.UnrealizedPnL(s.LastCandle.Close)

		b.WriteString(fmt.Sprintf("  %-5s entry %.2f  stop %.2f  qty %.4f  upnl %s\n",
			p.Direction, p.EntryPrice, p.StopPrice, p.RemainingQuantity, renderPnL(unrealized)))
	}

	b.WriteString("\n")

	return b.String()
}

func renderProgressBar(percent float64) string {
	if percent < 0 {
		percent = 0
	}

	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100 * progressBarWidth)

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled) + "]"
}
