package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brensch/bandits/game"
)

var (
	// ErrNoElves means the map has no elves, so no elf victory can be lossless.
	ErrNoElves = errors.New("map has no elves")
	// ErrNoLosslessPower means every power up to the search limit lost an elf.
	ErrNoLosslessPower = errors.New("no elf power up to the limit wins without losses")
)

// Strategy selects how Calibrate walks the power axis.
type Strategy uint8

const (
	// Linear tries every power from the start upward.
	Linear Strategy = iota
	// Bisect gallops upward to a lossless power, then bisects back down. It
	// agrees with Linear whenever more power never costs the elves a unit.
	Bisect
)

func (s Strategy) String() string {
	if s == Bisect {
		return "bisect"
	}
	return "linear"
}

// ParseStrategy maps "linear" or "bisect" to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "linear", "":
		return Linear, nil
	case "bisect", "binary":
		return Bisect, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// CalibrateOptions tunes the elf power search. Zero values pick the defaults.
type CalibrateOptions struct {
	// GoblinPower defaults to game.BasePower.
	GoblinPower int
	// StartPower is the first elf power tried; defaults to GoblinPower+1.
	StartPower int
	// MaxPower bounds the search; defaults to game.StartingHP, where every elf
	// hit kills outright.
	MaxPower int
	Strategy Strategy
	// Workers runs that many consecutive powers at once with the Linear
	// strategy. Each trial owns its own clone of the map.
	Workers int
	// OnTrial sees every trial that contributes to the result, in power order
	// for Linear and in execution order for Bisect.
	OnTrial func(Trial)
	Logger  *slog.Logger
}

func (o CalibrateOptions) withDefaults() CalibrateOptions {
	if o.GoblinPower <= 0 {
		o.GoblinPower = game.BasePower
	}
	if o.StartPower <= 0 {
		o.StartPower = o.GoblinPower + 1
	}
	if o.MaxPower <= 0 {
		o.MaxPower = game.StartingHP
	}
	if o.MaxPower < o.StartPower {
		o.MaxPower = o.StartPower
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Trial is one full battle at a fixed elf power.
type Trial struct {
	ElfPower  int
	Outcome   Outcome
	ElfLosses int
	Lossless  bool

	field *game.Battlefield
}

// Calibration is the result of the elf power search.
type Calibration struct {
	Power   int
	Outcome Outcome
	// Field is the final battlefield of the winning trial.
	Field  *game.Battlefield
	Trials []Trial
}

// Calibrate finds the smallest elf attack power at which the elves win
// without losing a single unit. Every trial fights on a fresh clone of
// initial, which is never modified.
func Calibrate(ctx context.Context, initial *game.Battlefield, opts CalibrateOptions) (Calibration, error) {
	opts = opts.withDefaults()
	if initial.Count(game.Elf) == 0 {
		return Calibration{}, ErrNoElves
	}

	c := calibrator{ctx: ctx, initial: initial, opts: opts}
	var (
		best Trial
		err  error
	)
	switch opts.Strategy {
	case Bisect:
		best, err = c.bisect()
	default:
		best, err = c.linear()
	}
	if err != nil {
		return Calibration{Trials: c.trials}, err
	}

	opts.Logger.Info("calibration complete",
		"power", best.ElfPower,
		"score", best.Outcome.Score,
		"rounds", best.Outcome.Rounds,
		"trials", len(c.trials),
		"strategy", opts.Strategy.String(),
	)
	return Calibration{
		Power:   best.ElfPower,
		Outcome: best.Outcome,
		Field:   best.field,
		Trials:  c.trials,
	}, nil
}

type calibrator struct {
	ctx     context.Context
	initial *game.Battlefield
	opts    CalibrateOptions
	trials  []Trial
}

func (c *calibrator) record(t Trial) {
	c.trials = append(c.trials, t)
	c.opts.Logger.Debug("calibration trial",
		"elf_power", t.ElfPower,
		"elf_losses", t.ElfLosses,
		"rounds", t.Outcome.Rounds,
		"score", t.Outcome.Score,
		"lossless", t.Lossless,
	)
	if c.opts.OnTrial != nil {
		c.opts.OnTrial(t)
	}
}

func (c *calibrator) run(power int) (Trial, error) {
	field := c.initial.Clone()
	elves := field.Count(game.Elf)
	battle := NewBattle(field, WithGoblinPower(c.opts.GoblinPower), WithElfPower(power))
	outcome, err := battle.Run(c.ctx)
	if err != nil {
		return Trial{}, fmt.Errorf("elf power %d: %w", power, err)
	}
	losses := elves - outcome.Survivors[game.Elf]
	return Trial{
		ElfPower:  power,
		Outcome:   outcome,
		ElfLosses: losses,
		Lossless:  losses == 0 && outcome.Survivors[game.Elf] > 0 && outcome.Survivors[game.Goblin] == 0,
		field:     field,
	}, nil
}

// linear scans upward in windows of opts.Workers powers. Within a window,
// results are consumed in power order, so the answer and the recorded trials
// match a one-at-a-time scan.
func (c *calibrator) linear() (Trial, error) {
	type result struct {
		trial Trial
		err   error
	}

	for base := c.opts.StartPower; base <= c.opts.MaxPower; base += c.opts.Workers {
		n := min(c.opts.Workers, c.opts.MaxPower-base+1)
		results := make([]result, n)
		if n == 1 {
			results[0].trial, results[0].err = c.run(base)
		} else {
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i].trial, results[i].err = c.run(base + i)
				}(i)
			}
			wg.Wait()
		}

		for _, r := range results {
			if r.err != nil {
				return Trial{}, r.err
			}
			c.record(r.trial)
			if r.trial.Lossless {
				return r.trial, nil
			}
		}
	}
	return Trial{}, fmt.Errorf("tried %d..%d: %w", c.opts.StartPower, c.opts.MaxPower, ErrNoLosslessPower)
}

// bisect doubles the step from StartPower until a lossless power is found,
// then narrows the gap between the last losing and first winning power.
func (c *calibrator) bisect() (Trial, error) {
	cache := make(map[int]Trial)
	try := func(power int) (Trial, error) {
		if t, ok := cache[power]; ok {
			return t, nil
		}
		t, err := c.run(power)
		if err != nil {
			return Trial{}, err
		}
		cache[power] = t
		c.record(t)
		return t, nil
	}

	lo := c.opts.StartPower - 1 // assumed losing
	hi := c.opts.StartPower
	var win Trial
	for step := 1; ; step *= 2 {
		t, err := try(hi)
		if err != nil {
			return Trial{}, err
		}
		if t.Lossless {
			win = t
			break
		}
		if hi == c.opts.MaxPower {
			return Trial{}, fmt.Errorf("tried up to %d: %w", c.opts.MaxPower, ErrNoLosslessPower)
		}
		lo = hi
		hi = min(hi+step, c.opts.MaxPower)
	}

	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		t, err := try(mid)
		if err != nil {
			return Trial{}, err
		}
		if t.Lossless {
			hi, win = mid, t
		} else {
			lo = mid
		}
	}
	return win, nil
}
