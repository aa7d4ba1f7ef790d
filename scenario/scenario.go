// Package scenario runs suites of battles described in YAML and checks their
// outcomes against expected values.
//
//	name: regression
//	scenarios:
//	  - name: canonical
//	    map: |
//	      #######
//	      #.G...#
//	      ...
//	    expect: {rounds: 47, score: 27730}
//	  - name: canonical-calibrated
//	    file: maps/canonical.txt
//	    calibrate: true
//	    expect: {power: 15, score: 4988}
package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/brensch/bandits/game"
	"github.com/brensch/bandits/mapsrc"
	"github.com/brensch/bandits/rules"
)

type Suite struct {
	Name string `yaml:"name"`
	// Defaults applied to scenarios that leave them unset.
	GoblinPower int    `yaml:"goblin_power"`
	Strategy    string `yaml:"strategy"`
	Workers     int    `yaml:"workers"`

	Scenarios []Scenario `yaml:"scenarios"`

	// Logger defaults to slog.Default.
	Logger *slog.Logger `yaml:"-"`

	dir string
}

// Scenario is one battle. Exactly one of Map and File is set; File is
// resolved relative to the suite file and may be a saved puzzle page, in which
// case Block picks the map.
type Scenario struct {
	Name        string `yaml:"name"`
	Map         string `yaml:"map"`
	File        string `yaml:"file"`
	Block       int    `yaml:"block"`
	ElfPower    int    `yaml:"elf_power"`
	GoblinPower int    `yaml:"goblin_power"`
	Calibrate   bool   `yaml:"calibrate"`
	MaxPower    int    `yaml:"max_power"`
	Expect      Expect `yaml:"expect"`
}

// Expect lists the values to check. Unset fields are not checked.
type Expect struct {
	Rounds *int   `yaml:"rounds"`
	Score  *int   `yaml:"score"`
	Power  *int   `yaml:"power"`
	Winner string `yaml:"winner"`
}

type Result struct {
	Name    string
	Outcome rules.Outcome
	// Power is the elf attack power the outcome was fought at.
	Power    int
	Err      error
	Failures []string
}

func (r Result) Passed() bool { return r.Err == nil && len(r.Failures) == 0 }

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse decodes a suite document. Unknown keys are rejected.
func Parse(raw []byte) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode suite: %w", err)
	}
	if _, err := rules.ParseStrategy(s.Strategy); err != nil {
		return nil, err
	}
	if len(s.Scenarios) == 0 {
		return nil, errors.New("suite has no scenarios")
	}
	seen := make(map[string]bool, len(s.Scenarios))
	for i, sc := range s.Scenarios {
		switch {
		case sc.Name == "":
			return nil, fmt.Errorf("scenario %d: name is required", i)
		case seen[sc.Name]:
			return nil, fmt.Errorf("scenario %q: duplicate name", sc.Name)
		case (sc.Map == "") == (sc.File == ""):
			return nil, fmt.Errorf("scenario %q: set exactly one of map and file", sc.Name)
		}
		seen[sc.Name] = true
	}
	return &s, nil
}

// Run plays every scenario in order. Per-scenario failures are reported in
// the results; the error is only non-nil if ctx ends first.
func (s *Suite) Run(ctx context.Context) ([]Result, error) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("suite", s.Name)

	results := make([]Result, 0, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := s.run(ctx, sc)
		if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
			return results, res.Err
		}
		results = append(results, res)

		if res.Passed() {
			log.Info("scenario passed", "scenario", sc.Name, "power", res.Power, "score", res.Outcome.Score)
		} else {
			log.Warn("scenario failed", "scenario", sc.Name, "err", res.Err, "failures", res.Failures)
		}
	}
	return results, nil
}

func (s *Suite) run(ctx context.Context, sc Scenario) Result {
	res := Result{Name: sc.Name}

	field, err := s.field(sc)
	if err != nil {
		res.Err = err
		return res
	}

	goblinPower := sc.GoblinPower
	if goblinPower <= 0 {
		goblinPower = s.GoblinPower
	}
	if goblinPower <= 0 {
		goblinPower = game.BasePower
	}

	if sc.Calibrate {
		strategy, _ := rules.ParseStrategy(s.Strategy)
		cal, err := rules.Calibrate(ctx, field, rules.CalibrateOptions{
			GoblinPower: goblinPower,
			MaxPower:    sc.MaxPower,
			Strategy:    strategy,
			Workers:     s.Workers,
			Logger:      s.Logger,
		})
		if err != nil {
			res.Err = err
			return res
		}
		res.Power = cal.Power
		res.Outcome = cal.Outcome
	} else {
		elfPower := sc.ElfPower
		if elfPower <= 0 {
			elfPower = game.BasePower
		}
		battle := rules.NewBattle(field, rules.WithElfPower(elfPower), rules.WithGoblinPower(goblinPower))
		outcome, err := battle.Run(ctx)
		if err != nil {
			res.Err = err
			return res
		}
		res.Power = elfPower
		res.Outcome = outcome
	}

	res.Failures = sc.Expect.check(res)
	return res
}

func (s *Suite) field(sc Scenario) (*game.Battlefield, error) {
	if sc.Map != "" {
		return game.Parse(sc.Map)
	}
	path := sc.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	return mapsrc.Load(path, sc.Block)
}

func (e Expect) check(r Result) []string {
	var failures []string
	if e.Rounds != nil && *e.Rounds != r.Outcome.Rounds {
		failures = append(failures, fmt.Sprintf("rounds: got %d, want %d", r.Outcome.Rounds, *e.Rounds))
	}
	if e.Score != nil && *e.Score != r.Outcome.Score {
		failures = append(failures, fmt.Sprintf("score: got %d, want %d", r.Outcome.Score, *e.Score))
	}
	if e.Power != nil && *e.Power != r.Power {
		failures = append(failures, fmt.Sprintf("power: got %d, want %d", r.Power, *e.Power))
	}
	if e.Winner != "" {
		want, err := game.ParseFaction(e.Winner)
		if err != nil {
			failures = append(failures, err.Error())
		} else if want != r.Outcome.Winner {
			failures = append(failures, fmt.Sprintf("winner: got %s, want %s", r.Outcome.Winner, want))
		}
	}
	return failures
}
