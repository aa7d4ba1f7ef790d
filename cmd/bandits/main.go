package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/brensch/bandits/game"
	"github.com/brensch/bandits/logging"
	"github.com/brensch/bandits/mapsrc"
	"github.com/brensch/bandits/rules"
	"github.com/brensch/bandits/scenario"
	"github.com/brensch/bandits/store"
)

type config struct {
	input       string
	block       int
	part        int
	elfPower    int
	goblinPower int
	strategy    string
	workers     int
	maxPower    int
	traceOut    string
	trialsOut   string
	suite       string
	tui         bool
	show        bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.input, "input", getEnvOrDefault("BANDITS_INPUT", "input.txt"), "Map file (plain text, or a saved puzzle page ending in .html)")
	flag.IntVar(&cfg.block, "block", getEnvIntOrDefault("BANDITS_BLOCK", 0), "Which map to use when -input is an HTML page (0-based)")
	flag.IntVar(&cfg.part, "part", getEnvIntOrDefault("BANDITS_PART", 1), "1: fight once and print the score; 2: find the lowest lossless elf power")
	flag.IntVar(&cfg.elfPower, "elf-power", getEnvIntOrDefault("BANDITS_ELF_POWER", game.BasePower), "Elf attack power for part 1")
	flag.IntVar(&cfg.goblinPower, "goblin-power", getEnvIntOrDefault("BANDITS_GOBLIN_POWER", game.BasePower), "Goblin attack power")
	flag.StringVar(&cfg.strategy, "strategy", getEnvOrDefault("BANDITS_STRATEGY", "linear"), "Calibration search: linear or bisect")
	flag.IntVar(&cfg.workers, "workers", getEnvIntOrDefault("BANDITS_WORKERS", 1), "Concurrent trials for the linear search")
	flag.IntVar(&cfg.maxPower, "max-power", getEnvIntOrDefault("BANDITS_MAX_POWER", game.StartingHP), "Highest elf power to try")
	flag.StringVar(&cfg.traceOut, "trace-out", getEnvOrDefault("BANDITS_TRACE_OUT", ""), "Write a round-by-round parquet trace of the battle here")
	flag.StringVar(&cfg.trialsOut, "trials-out", getEnvOrDefault("BANDITS_TRIALS_OUT", ""), "Write every calibration trial to this parquet file")
	flag.StringVar(&cfg.suite, "suite", getEnvOrDefault("BANDITS_SUITE", ""), "Run a YAML scenario suite instead of a single map")
	flag.BoolVar(&cfg.tui, "tui", getEnvBoolOrDefault("BANDITS_TUI", false), "Show a live dashboard while calibrating")
	flag.BoolVar(&cfg.show, "show", getEnvBoolOrDefault("BANDITS_SHOW", false), "Print the final battlefield")
	logLevel := flag.String("log-level", getEnvOrDefault("BANDITS_LOG_LEVEL", "info"), "debug, info, warn or error")
	logFormat := flag.String("log-format", getEnvOrDefault("BANDITS_LOG_FORMAT", "text"), "text, json or pretty")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(os.Stderr, level, logging.Format(*logFormat))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, log); err != nil {
		log.Error("bandits failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, out io.Writer, log *slog.Logger) error {
	if cfg.suite != "" {
		return runSuite(ctx, cfg.suite, out, log)
	}

	field, err := mapsrc.Load(cfg.input, cfg.block)
	if err != nil {
		return err
	}
	id := mapID(cfg.input, cfg.block)
	log.Info("map loaded",
		"map", id,
		"width", field.Width(),
		"height", field.Height(),
		"goblins", field.Count(game.Goblin),
		"elves", field.Count(game.Elf),
	)

	switch cfg.part {
	case 1:
		return runBattle(ctx, cfg, id, field, out, log)
	case 2:
		return runCalibration(ctx, cfg, id, field, out, log)
	default:
		return fmt.Errorf("unknown part %d", cfg.part)
	}
}

func runBattle(ctx context.Context, cfg config, id string, field *game.Battlefield, out io.Writer, log *slog.Logger) error {
	outcome, err := fight(ctx, cfg, id, field, cfg.elfPower, log)
	if err != nil {
		return err
	}
	log.Info("battle over",
		"winner", outcome.Winner.String(),
		"rounds", outcome.Rounds,
		"hit_points", outcome.HitPoints,
	)
	if cfg.show {
		fmt.Fprintln(out, field.Render(true))
	}
	fmt.Fprintln(out, outcome.Score)
	return nil
}

// fight plays one battle on field, recording a trace when cfg asks for one.
func fight(ctx context.Context, cfg config, id string, field *game.Battlefield, elfPower int, log *slog.Logger) (rules.Outcome, error) {
	opts := []rules.BattleOption{rules.WithElfPower(elfPower), rules.WithGoblinPower(cfg.goblinPower)}
	var rec *store.TraceRecorder
	if cfg.traceOut != "" {
		rec = store.NewTraceRecorder(id, field, elfPower, cfg.goblinPower)
		opts = append(opts, rules.WithObserver(rec.Observe))
	}

	outcome, err := rules.NewBattle(field, opts...).Run(ctx)
	if err != nil {
		return rules.Outcome{}, err
	}

	if rec != nil {
		if err := store.WriteTraceParquet(cfg.traceOut, rec.Rows()); err != nil {
			return rules.Outcome{}, err
		}
		log.Info("trace written", "path", cfg.traceOut, "rows", len(rec.Rows()))
	}
	return outcome, nil
}

func runCalibration(ctx context.Context, cfg config, id string, field *game.Battlefield, out io.Writer, log *slog.Logger) error {
	strategy, err := rules.ParseStrategy(cfg.strategy)
	if err != nil {
		return err
	}
	opts := rules.CalibrateOptions{
		GoblinPower: cfg.goblinPower,
		MaxPower:    cfg.maxPower,
		Strategy:    strategy,
		Workers:     cfg.workers,
		Logger:      log,
	}

	var trials *store.TrialWriter
	var writeErr error
	if cfg.trialsOut != "" {
		trials, err = store.NewTrialWriter(cfg.trialsOut)
		if err != nil {
			return err
		}
		opts.OnTrial = func(t rules.Trial) {
			if err := trials.Write(store.NewTrialRow(id, cfg.goblinPower, t)); err != nil && writeErr == nil {
				writeErr = err
			}
		}
	}

	var cal rules.Calibration
	if cfg.tui {
		opts.Logger = slog.New(slog.DiscardHandler)
		cal, err = runDashboard(ctx, id, field, opts)
	} else {
		cal, err = rules.Calibrate(ctx, field, opts)
	}

	if trials != nil {
		path, n, ferr := trials.Finalize()
		if ferr != nil {
			return errors.Join(err, ferr)
		}
		if writeErr != nil {
			return errors.Join(err, writeErr)
		}
		log.Info("trials written", "path", path, "rows", n)
	}
	if err != nil {
		return err
	}

	if cfg.traceOut != "" {
		// Fight the winning power again to record it.
		if _, err := fight(ctx, cfg, id, field.Clone(), cal.Power, log); err != nil {
			return err
		}
	}
	if cfg.show {
		fmt.Fprintln(out, cal.Field.Render(true))
	}
	fmt.Fprintf(out, "%d %d\n", cal.Outcome.Score, cal.Power)
	return nil
}

func runSuite(ctx context.Context, path string, out io.Writer, log *slog.Logger) error {
	suite, err := scenario.Load(path)
	if err != nil {
		return err
	}
	suite.Logger = log

	results, err := suite.Run(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Passed() {
			fmt.Fprintf(out, "PASS %s: power %d, %d rounds, score %d\n", r.Name, r.Power, r.Outcome.Rounds, r.Outcome.Score)
			continue
		}
		failed++
		reason := strings.Join(r.Failures, "; ")
		if r.Err != nil {
			reason = r.Err.Error()
		}
		fmt.Fprintf(out, "FAIL %s: %s\n", r.Name, reason)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

func mapID(path string, block int) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	id := strings.TrimSuffix(base, ext)
	switch strings.ToLower(ext) {
	case ".html", ".htm":
		return fmt.Sprintf("%s#%d", id, block)
	}
	return id
}
