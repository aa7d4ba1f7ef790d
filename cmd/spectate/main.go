package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brensch/bandits/game"
	"github.com/brensch/bandits/logging"
	"github.com/brensch/bandits/mapsrc"
	"github.com/brensch/bandits/rules"
	"github.com/brensch/bandits/spectate"
	"github.com/brensch/bandits/store"
)

func main() {
	listen := flag.String("listen", getEnvOrDefault("SPECTATE_LISTEN", "127.0.0.1:8080"), "HTTP listen address")
	trace := flag.String("trace", getEnvOrDefault("SPECTATE_TRACE", ""), "Parquet trace to replay (written by bandits -trace-out)")
	input := flag.String("input", getEnvOrDefault("SPECTATE_INPUT", ""), "Map to simulate when no -trace is given")
	block := flag.Int("block", getEnvIntOrDefault("SPECTATE_BLOCK", 0), "Map block when -input is an HTML page")
	elfPower := flag.Int("elf-power", getEnvIntOrDefault("SPECTATE_ELF_POWER", game.BasePower), "Elf attack power when simulating")
	goblinPower := flag.Int("goblin-power", getEnvIntOrDefault("SPECTATE_GOBLIN_POWER", game.BasePower), "Goblin attack power when simulating")
	trials := flag.String("trials", getEnvOrDefault("SPECTATE_TRIALS", ""), "Comma-separated trial parquet files to summarise on /api/trials")
	interval := flag.Duration("interval", getEnvDurationOrDefault("SPECTATE_INTERVAL", 250*time.Millisecond), "Delay between frames")
	loop := flag.Bool("loop", getEnvBoolOrDefault("SPECTATE_LOOP", true), "Restart the replay after the last frame")
	logLevel := flag.String("log-level", getEnvOrDefault("SPECTATE_LOG_LEVEL", "info"), "debug, info, warn or error")
	logFormat := flag.String("log-format", getEnvOrDefault("SPECTATE_LOG_FORMAT", "text"), "text, json or pretty")
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

	frames, err := loadFrames(ctx, *trace, *input, *block, *elfPower, *goblinPower)
	if err != nil {
		log.Error("load frames", "err", err)
		os.Exit(1)
	}
	log.Info("frames loaded", "frames", len(frames), "battle", frames[0].BattleID)

	var opts []spectate.RouterOption
	if files := splitList(*trials); len(files) > 0 {
		opts = append(opts, spectate.WithTrialFiles(files...))
	}

	hub := spectate.NewHub(log)
	go hub.Run(ctx)

	go func() {
		if err := spectate.Replay(ctx, hub, frames, *interval, *loop); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("replay stopped", "err", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{Addr: *listen, Handler: spectate.NewRouter(hub, frames, opts...)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("spectator server listening", "addr", *listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "err", err)
		os.Exit(1)
	}
}

// loadFrames reads a trace, or fights the map at input and records one.
func loadFrames(ctx context.Context, trace, input string, block, elfPower, goblinPower int) ([]spectate.Frame, error) {
	if trace != "" {
		rows, err := store.ReadTrace(trace)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%s: empty trace", trace)
		}
		return spectate.FramesFromTrace(rows), nil
	}
	if input == "" {
		return nil, errors.New("one of -trace and -input is required")
	}

	field, err := mapsrc.Load(input, block)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	rec := store.NewTraceRecorder(id, field, elfPower, goblinPower)
	battle := rules.NewBattle(field,
		rules.WithElfPower(elfPower),
		rules.WithGoblinPower(goblinPower),
		rules.WithObserver(rec.Observe),
	)
	if _, err := battle.Run(ctx); err != nil && !errors.Is(err, rules.ErrStalemate) {
		return nil, err
	}
	return spectate.FramesFromTrace(rec.Rows()), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
