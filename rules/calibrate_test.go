package rules

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/bandits/game"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var calibrationCases = []struct {
	name  string
	input string
	final string
	score int
	power int
}{
	{"canonical", canonicalMap, `
#######
#..E..#   E(158)
#...E.#   E(14)
#.#.#.#
#...#.#
#.....#
#######`, 4988, 15},
	{"elves sweep", battleCases[2].input, `
#######
#.E.E.#   E(200), E(23)
#.#E..#   E(200)
#E.##E#   E(125), E(200)
#.E.#.#   E(200)
#...#.#
#######`, 31284, 4},
	{"goblins split", battleCases[3].input, `
#######
#.E.#.#   E(8)
#.#E..#   E(86)
#..#..#
#...#.#
#.....#
#######`, 3478, 15},
	{"corridor", battleCases[4].input, `
#######
#...E.#   E(14)
#.#..E#   E(152)
#.###.#
#.#.#.#
#...#.#
#######`, 6474, 12},
	{"large", battleCases[5].input, `
#########
#.......#
#.E.#...#   E(38)
#..##...#
#...##..#
#...#...#
#.......#
#.......#
#########`, 1140, 34},
}

func TestCalibrate_Scenarios(t *testing.T) {
	for _, tc := range calibrationCases {
		t.Run(tc.name, func(t *testing.T) {
			initial := game.MustParse(tc.input)
			before := initial.Render(true)

			cal, err := Calibrate(context.Background(), initial, CalibrateOptions{Logger: quietLogger()})
			require.NoError(t, err)
			t.Logf("power=%d trials=%d final:\n%s", cal.Power, len(cal.Trials), cal.Field.Render(true))

			assert.Equal(t, tc.power, cal.Power)
			assert.Equal(t, tc.score, cal.Outcome.Score)
			assert.Equal(t, game.Elf, cal.Outcome.Winner)
			assert.Equal(t, trimmed(tc.final), trimmed(cal.Field.Render(true)))
			assert.Equal(t, before, initial.Render(true), "initial map must not be modified")

			require.Len(t, cal.Trials, tc.power-game.BasePower)
			for i, trial := range cal.Trials {
				assert.Equal(t, game.BasePower+1+i, trial.ElfPower)
				assert.Equal(t, i == len(cal.Trials)-1, trial.Lossless, "trial at power %d", trial.ElfPower)
			}
		})
	}
}

func TestCalibrate_CanonicalRounds(t *testing.T) {
	cal, err := Calibrate(context.Background(), game.MustParse(canonicalMap), CalibrateOptions{Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, 29, cal.Outcome.Rounds)
	assert.Equal(t, 172, cal.Outcome.HitPoints)
	assert.Zero(t, cal.Trials[len(cal.Trials)-1].ElfLosses)
}

func TestCalibrate_StrategiesAgree(t *testing.T) {
	for _, tc := range calibrationCases {
		t.Run(tc.name, func(t *testing.T) {
			linear, err := Calibrate(context.Background(), game.MustParse(tc.input), CalibrateOptions{Logger: quietLogger()})
			require.NoError(t, err)

			parallel, err := Calibrate(context.Background(), game.MustParse(tc.input), CalibrateOptions{Workers: 4, Logger: quietLogger()})
			require.NoError(t, err)
			assert.Equal(t, linear.Power, parallel.Power)
			assert.Equal(t, linear.Outcome, parallel.Outcome)
			require.Len(t, parallel.Trials, len(linear.Trials))
			for i := range linear.Trials {
				assert.Equal(t, linear.Trials[i].ElfPower, parallel.Trials[i].ElfPower)
				assert.Equal(t, linear.Trials[i].Outcome, parallel.Trials[i].Outcome)
			}

			bisect, err := Calibrate(context.Background(), game.MustParse(tc.input), CalibrateOptions{Strategy: Bisect, Logger: quietLogger()})
			require.NoError(t, err)
			assert.Equal(t, linear.Power, bisect.Power)
			assert.Equal(t, linear.Outcome, bisect.Outcome)
			assert.Equal(t, trimmed(linear.Field.Render(true)), trimmed(bisect.Field.Render(true)))
		})
	}
}

func TestCalibrate_BisectProbeOrder(t *testing.T) {
	var powers []int
	cal, err := Calibrate(context.Background(), game.MustParse(canonicalMap), CalibrateOptions{
		Strategy: Bisect,
		Logger:   quietLogger(),
		OnTrial:  func(tr Trial) { powers = append(powers, tr.ElfPower) },
	})
	require.NoError(t, err)
	assert.Equal(t, 15, cal.Power)
	assert.Equal(t, []int{4, 5, 7, 11, 19, 15, 13, 14}, powers)
}

func TestCalibrate_MorePowerNeverCostsElves(t *testing.T) {
	initial := game.MustParse(canonicalMap)
	elves := initial.Count(game.Elf)
	prev := elves + 1
	for power := game.BasePower; power <= 25; power++ {
		outcome, err := NewBattle(initial.Clone(), WithElfPower(power)).Run(context.Background())
		require.NoError(t, err)
		losses := elves - outcome.Survivors[game.Elf]
		assert.LessOrEqual(t, losses, prev, "power %d", power)
		prev = losses
	}
	assert.Zero(t, prev)
}

func TestCalibrate_Errors(t *testing.T) {
	t.Run("no elves", func(t *testing.T) {
		_, err := Calibrate(context.Background(), game.MustParse("####\n#G.#\n####"), CalibrateOptions{Logger: quietLogger()})
		assert.ErrorIs(t, err, ErrNoElves)
	})
	t.Run("limit too low", func(t *testing.T) {
		for _, s := range []Strategy{Linear, Bisect} {
			cal, err := Calibrate(context.Background(), game.MustParse(canonicalMap), CalibrateOptions{
				MaxPower: 10,
				Strategy: s,
				Logger:   quietLogger(),
			})
			assert.ErrorIs(t, err, ErrNoLosslessPower, s.String())
			assert.NotEmpty(t, cal.Trials)
		}
	})
	t.Run("unreachable goblin", func(t *testing.T) {
		_, err := Calibrate(context.Background(), game.MustParse("#####\n#G#E#\n#####"), CalibrateOptions{Logger: quietLogger()})
		assert.ErrorIs(t, err, ErrStalemate)
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Calibrate(ctx, game.MustParse(canonicalMap), CalibrateOptions{Workers: 3, Logger: quietLogger()})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("bisect")
	require.NoError(t, err)
	assert.Equal(t, Bisect, s)
	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Linear, s)
	_, err = ParseStrategy("random")
	assert.Error(t, err)
}
