package backtest

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// PrintReport writes a plain-text summary of res to w.
func PrintReport(w io.Writer, res *Result) error {
	rule := strings.Repeat("=", 72)
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "  BACKTEST RESULTS - %s\n", res.Symbol)
	fmt.Fprintln(&b, rule)
	if res.Bars > 0 {
		fmt.Fprintf(&b, "  Period:             %s .. %s (%d bars)\n",
			res.Start.Format(time.DateOnly), res.End.Format(time.DateOnly), res.Bars)
	}
	fmt.Fprintf(&b, "  Starting Value:     %.2f\n", res.StartValue)
	fmt.Fprintf(&b, "  Ending Value:       %.2f\n", res.EndValue)
	fmt.Fprintf(&b, "  Return:             %.2f%%\n", res.ReturnPct)
	fmt.Fprintf(&b, "  Buy & Hold Return:  %.2f%%\n", res.BuyAndHoldPct)
	fmt.Fprintf(&b, "  Max Drawdown:       %.2f (%.2f%%)\n", res.MaxDrawdown, res.MaxDrawdownPct)

	for _, s := range res.Strategies {
		fmt.Fprintf(&b, "\n  [%s]\n", s.Name)
		fmt.Fprintf(&b, "    Signals:          %d buy / %d sell\n", s.Buys, s.Sells)
		fmt.Fprintf(&b, "    Closed Trades:    %d (%d won, %d lost)\n", s.Trades, s.Wins, s.Losses)
		fmt.Fprintf(&b, "    Net P&L:          %.2f\n", s.NetPnL)
	}

	if len(res.Trades) > 0 {
		recent := res.Trades
		if len(recent) > 10 {
			recent = recent[len(recent)-10:]
		}
		fmt.Fprintf(&b, "\n  RECENT TRADES (last %d)\n", len(recent))
		for _, tr := range recent {
			fmt.Fprintf(&b, "    %s %-4s %-12s %8.2f -> %8.2f  gross %9.2f  net %9.2f\n",
				tr.Closed.Format(time.DateOnly), tr.Side, tr.Book,
				tr.EntryPrice, tr.ExitPrice, tr.Gross, tr.Net)
		}
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}
