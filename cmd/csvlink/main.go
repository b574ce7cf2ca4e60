// csvlink merges CSV datasets that share no key. Rows of every secondary
// dataset are matched with BM25 against the selected fields of the primary
// (first) dataset, and the merged table is written to a CSV file or a
// database table.
//
//	csvlink companies.csv crm.csv vendors.csv --output combined.csv \
//	    --fields companies.csv=name:2,city --fields crm.csv=company
//
// Files without a --fields selection are prompted for interactively.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{stdin: os.Stdin, stderr: os.Stderr, prompt: terminalPrompt(os.Stdin, os.Stderr)}
	err := a.run(ctx, os.Args[1:])
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "csvlink: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

type options struct {
	configPath      string
	output          string
	fields          []string
	sink            string
	table           string
	absent          string
	minScore        float64
	minOverlap      int
	workers         int
	batchSize       int
	conflict        string
	logLevel        string
	logFormat       string
	metricsPort     int
	metricsTextfile string
	resetCache      bool
	flushInterval   time.Duration
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet("csvlink", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flagSet.StringVarP(&opts.output, "output", "o", "", "output file (default combined.csv, combined.db for the sqlite sink)")
	flagSet.StringArrayVarP(&opts.fields, "fields", "f", nil, "field selection as file=field[:weight],... (repeatable)")
	flagSet.StringVar(&opts.sink, "sink", "csv", "output sink: csv, sqlite or postgres")
	flagSet.StringVar(&opts.table, "table", "combined", "output table (database sinks)")
	flagSet.StringVar(&opts.absent, "absent", "", "text written for unmatched cells (csv sink)")
	flagSet.Float64Var(&opts.minScore, "min-score", 0, "minimum certainty for a match")
	flagSet.IntVar(&opts.minOverlap, "min-overlap", 1, "minimum distinct shared terms for a match")
	flagSet.IntVar(&opts.workers, "workers", 4, "concurrent scoring workers")
	flagSet.IntVar(&opts.batchSize, "batch-size", 256, "secondary rows scored per batch")
	flagSet.StringVar(&opts.conflict, "conflict", "last", "when several rows match one primary row: last or best")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	flagSet.IntVar(&opts.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port during the run")
	flagSet.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write final metrics to this file")
	flagSet.BoolVar(&opts.resetCache, "reset-cache", false, "drop cached match decisions before running")
	flagSet.DurationVar(&opts.flushInterval, "event-flush-interval", 5*time.Second, "link event publish interval")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "Usage: csvlink <primary.csv> <secondary.csv>... [flags]")
		fmt.Fprintln(stderr)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, nil, nil, err
		}
		return nil, nil, nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	if help, _ := flagSet.GetBool("help"); help {
		flagSet.Usage()
		return nil, nil, nil, pflag.ErrHelp
	}
	return &opts, flagSet.Args(), flagSet, nil
}
