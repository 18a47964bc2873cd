// Command gosig back-tests signal strategies over a Yahoo Finance CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/evdnx/gosig/api"
	"github.com/evdnx/gosig/backtest"
	"github.com/evdnx/gosig/config"
	"github.com/evdnx/gosig/feed"
	"github.com/evdnx/gosig/journal"
	"github.com/evdnx/gosig/logger"
)

type options struct {
	configPath  string
	dataPath    string
	symbol      string
	from, to    string
	adjust      bool
	reverse     bool
	journalPath string
	serveAddr   string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("gosig", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "strategies YAML (default: one 50/200 golden cross)")
	fs.StringVar(&o.dataPath, "data", "", "Yahoo Finance daily CSV")
	fs.StringVar(&o.symbol, "symbol", "DATA", "symbol the data file belongs to")
	fs.StringVar(&o.from, "from", "", "first bar date, YYYY-MM-DD (inclusive)")
	fs.StringVar(&o.to, "to", "", "last bar date, YYYY-MM-DD (inclusive)")
	fs.BoolVar(&o.adjust, "adjust", false, "scale prices by Adj Close")
	fs.BoolVar(&o.reverse, "reverse", false, "data file is listed newest first")
	fs.StringVar(&o.journalPath, "journal", "", "SQLite journal to store the run in")
	fs.StringVar(&o.serveAddr, "serve", "", "after the run, serve results and metrics on this address")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.dataPath == "" {
		return o, errors.New("-data is required")
	}
	return o, nil
}

func (o options) feedOptions() (feed.Options, error) {
	fo := feed.Options{Adjust: o.adjust, Reverse: o.reverse}
	var err error
	if o.from != "" {
		if fo.From, err = time.Parse(time.DateOnly, o.from); err != nil {
			return fo, fmt.Errorf("-from: %w", err)
		}
	}
	if o.to != "" {
		if fo.To, err = time.Parse(time.DateOnly, o.to); err != nil {
			return fo, fmt.Errorf("-to: %w", err)
		}
	}
	return fo, nil
}

func loadConfig(path string) (*config.File, error) {
	var (
		f   *config.File
		err error
	)
	if path == "" {
		f = config.Default()
	} else if f, err = config.Load(path); err != nil {
		return nil, err
	}
	if err := f.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return f, nil
}

// run is main without the process exit, so it can be driven from tests.
func run(ctx context.Context, args []string, out io.Writer, log logger.Logger) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	fo, err := o.feedOptions()
	if err != nil {
		return err
	}
	bars, err := feed.LoadYahooFile(o.dataPath, fo)
	if err != nil {
		return err
	}
	log.Info("data_loaded", logger.String("path", o.dataPath), logger.Int("bars", len(bars)))

	runner, err := backtest.New(o.symbol, cfg.Broker, log)
	if err != nil {
		return err
	}
	for _, sc := range cfg.Strategies {
		if _, err := runner.AddStrategy(sc); err != nil {
			return err
		}
	}
	res, err := runner.Run(ctx, bars)
	if err != nil {
		return err
	}
	if err := backtest.PrintReport(out, res); err != nil {
		return err
	}

	var (
		j     *journal.Journal
		runID string
	)
	if o.journalPath != "" {
		if j, err = journal.Open(o.journalPath); err != nil {
			return err
		}
		defer j.Close()
		if runID, err = j.SaveRun(ctx, res); err != nil {
			return err
		}
		log.Info("run_saved", logger.String("id", runID), logger.String("journal", o.journalPath))
	}

	if o.serveAddr == "" {
		return nil
	}
	var store api.RunStore
	if j != nil {
		store = j
	}
	srv := api.NewServer(store, log)
	srv.Publish(res, runID)
	return srv.Serve(ctx, o.serveAddr)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	log, err := logger.NewZapLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, os.Args[1:], os.Stdout, log)
	failed := err != nil && !errors.Is(err, flag.ErrHelp)
	if failed {
		log.Error("gosig_failed", logger.Err(err))
	}
	_ = logger.Sync(log)
	if failed {
		os.Exit(1)
	}
}
