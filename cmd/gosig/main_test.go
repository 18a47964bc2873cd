package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evdnx/gosig/config"
	"github.com/evdnx/gosig/journal"
	"github.com/evdnx/gosig/testutils"
)

const csvData = `Date,Open,High,Low,Close,Adj Close,Volume
2014-06-02,10,10,10,10,10,100
2014-06-03,10,10,10,10,10,100
2014-06-04,10,10,10,10,10,100
2014-06-05,10,10,10,10,10,100
2014-06-06,13,13,13,13,13,100
2014-06-09,13,13,13,13,13,100
2014-06-10,5,5,5,5,5,100
2014-06-11,5,5,5,5,5,100
`

const yamlConfig = `
strategies:
  - name: gc
    rules:
      - type: crossover
        fast: 2
        slow: 3
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func clearEnv(t *testing.T) {
	for _, k := range []string{config.EnvCash, config.EnvCommission, config.EnvStake} {
		t.Setenv(k, "")
	}
}

/*
-----------------------------------------------------------------------
End to end: CSV in, report out, run stored in the journal.
-----------------------------------------------------------------------
*/
func TestRun_ReportAndJournal(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	data := writeFile(t, dir, "orcl.csv", csvData)
	cfg := writeFile(t, dir, "strategies.yaml", yamlConfig)
	db := filepath.Join(dir, "journal.db")

	var out bytes.Buffer
	log := testutils.NewMockLogger()
	err := run(context.Background(), []string{
		"-config", cfg, "-data", data, "-symbol", "ORCL", "-journal", db,
	}, &out, log)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	report := out.String()
	for _, want := range []string{"BACKTEST RESULTS - ORCL", "Ending Value:       9919.82", "[gc]"} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
	if log.Count("run_saved") != 1 {
		t.Fatal("expected the run to be journaled")
	}

	j, err := journal.Open(db)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer j.Close()
	runs, err := j.Runs(context.Background(), 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one stored run: %v %v", runs, err)
	}
	trades, err := j.Trades(context.Background(), runs[0].ID)
	if err != nil || len(trades) != 1 {
		t.Fatalf("expected one journaled trade: %v %v", trades, err)
	}
}

func TestRun_DateWindowAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvCash, "5000")
	dir := t.TempDir()
	data := writeFile(t, dir, "orcl.csv", csvData)
	cfg := writeFile(t, dir, "strategies.yaml", yamlConfig)

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"-config", cfg, "-data", data, "-from", "2014-06-03", "-to", "2014-06-05",
	}, &out, testutils.NewMockLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "(3 bars)") || !strings.Contains(out.String(), "Starting Value:     5000.00") {
		t.Fatalf("unexpected report:\n%s", out.String())
	}
}

func TestRun_BadInput(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	data := writeFile(t, dir, "orcl.csv", csvData)
	log := testutils.NewMockLogger()

	cases := [][]string{
		{},
		{"-data", filepath.Join(dir, "missing.csv")},
		{"-data", data, "-from", "June"},
		{"-data", data, "-config", writeFile(t, dir, "bad.yaml", "strategies: []\n")},
	}
	for i, args := range cases {
		if err := run(context.Background(), args, &bytes.Buffer{}, log); err == nil {
			t.Fatalf("case %d: expected an error for %v", i, args)
		}
	}
}
