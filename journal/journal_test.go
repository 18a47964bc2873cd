package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/evdnx/gosig/backtest"
	"github.com/evdnx/gosig/executor"
	"github.com/evdnx/gosig/types"
)

func sampleResult() *backtest.Result {
	day := time.Date(2014, 6, 2, 0, 0, 0, 0, time.UTC)
	return &backtest.Result{
		Symbol:        "ORCL",
		Start:         day,
		End:           day.AddDate(0, 0, 7),
		Bars:          8,
		StartValue:    10_000,
		EndValue:      9919.82,
		ReturnPct:     -0.8018,
		BuyAndHoldPct: -50,
		MaxDrawdown:   80.18,
		Trades: []executor.TradeEvent{
			{Book: "gc", Symbol: "ORCL", Side: types.Buy, Qty: 10, EntryPrice: 13, ExitPrice: 5,
				Opened: day.AddDate(0, 0, 5), Closed: day.AddDate(0, 0, 7), Gross: -80, Net: -80.18},
			{Book: "rsi", Symbol: "ORCL", Side: types.Sell, Qty: 10, EntryPrice: 12, ExitPrice: 11,
				Opened: day.AddDate(0, 0, 3), Closed: day.AddDate(0, 0, 6), Gross: 10, Net: 9.77},
		},
	}
}

func TestSaveRunAndReadBack(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "runs", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()
	ctx := context.Background()

	res := sampleResult()
	id, err := j.SaveRun(ctx, res)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	run, err := j.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Symbol != "ORCL" || run.Bars != 8 || run.EndValue != 9919.82 || !run.Start.Equal(res.Start) {
		t.Fatalf("unexpected run: %+v", run)
	}

	trades, err := j.Trades(ctx, id)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	got := trades[0]
	want := res.Trades[0]
	if got.Book != want.Book || got.Side != want.Side || got.Net != want.Net || !got.Closed.Equal(want.Closed) {
		t.Fatalf("trade mismatch: got %+v want %+v", got, want)
	}
	if trades[1].Side != types.Sell {
		t.Fatalf("second trade side: %s", trades[1].Side)
	}
}

func TestRunsAreSeparate(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()
	ctx := context.Background()

	first, _ := j.SaveRun(ctx, sampleResult())
	empty := sampleResult()
	empty.Trades = nil
	second, err := j.SaveRun(ctx, empty)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if first == second {
		t.Fatal("run ids must be unique")
	}
	trades, err := j.Trades(ctx, second)
	if err != nil || len(trades) != 0 {
		t.Fatalf("second run should have no trades: %v %v", trades, err)
	}

	runs, err := j.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("expected newest run first, got %+v", runs)
	}
	if runs, _ := j.Runs(ctx, 1); len(runs) != 1 {
		t.Fatalf("limit ignored: %d runs", len(runs))
	}
}

func TestGetRunUnknown(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()
	if _, err := j.GetRun(context.Background(), "nope"); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("expected ErrUnknownRun, got %v", err)
	}
	if _, err := j.SaveRun(context.Background(), nil); err == nil {
		t.Fatal("expected an error for a nil result")
	}
	if _, err := Open(""); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}
