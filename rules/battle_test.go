package rules

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/bandits/game"
)

const canonicalMap = `
#######
#.G...#
#...EG#
#.#.#G#
#..G#E#
#.....#
#######`

func trimmed(s string) string { return strings.TrimSpace(s) }

func TestRound_Movement(t *testing.T) {
	battle := NewBattle(game.MustParse(`
#########
#G..G..G#
#.......#
#.......#
#G..E..G#
#.......#
#.......#
#G..G..G#
#########`))

	rounds := []string{`
#########
#.G...G.#
#...G...#
#...E..G#
#.G.....#
#.......#
#G..G..G#
#.......#
#########`, `
#########
#..G.G..#
#...G...#
#.G.E.G.#
#.......#
#G..G..G#
#.......#
#.......#
#########`, `
#########
#.......#
#..GGG..#
#..GEG..#
#G..G...#
#......G#
#.......#
#.......#
#########`,
	}
	for i, want := range rounds {
		require.True(t, battle.Round(), "round %d", i+1)
		t.Logf("after round %d:\n%s", i+1, battle.Field())
		require.Equal(t, trimmed(want), trimmed(battle.Field().String()), "round %d", i+1)
	}
	assert.Equal(t, len(rounds), battle.Rounds())
}

func TestRound_CanonicalProgression(t *testing.T) {
	battle := NewBattle(game.MustParse(canonicalMap))

	checkpoints := []struct {
		round int
		board string
	}{
		{1, `
#######
#..G..#   G(200)
#...EG#   E(197), G(197)
#.#G#G#   G(200), G(197)
#...#E#   E(197)
#.....#
#######`},
		{2, `
#######
#...G.#   G(200)
#..GEG#   G(200), E(188), G(194)
#.#.#G#   G(194)
#...#E#   E(194)
#.....#
#######`},
		{23, `
#######
#...G.#   G(200)
#..G.G#   G(200), G(131)
#.#.#G#   G(131)
#...#E#   E(131)
#.....#
#######`},
		{24, `
#######
#..G..#   G(200)
#...G.#   G(131)
#.#G#G#   G(200), G(128)
#...#E#   E(128)
#.....#
#######`},
		{25, `
#######
#.G...#   G(200)
#..G..#   G(131)
#.#.#G#   G(125)
#..G#E#   G(200), E(125)
#.....#
#######`},
		{26, `
#######
#G....#   G(200)
#.G...#   G(131)
#.#.#G#   G(122)
#...#E#   E(122)
#..G..#   G(200)
#######`},
		{27, `
#######
#G....#   G(200)
#.G...#   G(131)
#.#.#G#   G(119)
#...#E#   E(119)
#...G.#   G(200)
#######`},
		{28, `
#######
#G....#   G(200)
#.G...#   G(131)
#.#.#G#   G(116)
#...#E#   E(113)
#....G#   G(200)
#######`},
		{47, `
#######
#G....#   G(200)
#.G...#   G(131)
#.#.#G#   G(59)
#...#.#
#....G#   G(200)
#######`},
	}

	for _, cp := range checkpoints {
		for battle.Rounds() < cp.round {
			require.True(t, battle.Round(), "round %d ended the battle early", battle.Rounds()+1)
		}
		got := battle.Field().Render(true)
		if trimmed(got) != trimmed(cp.board) {
			t.Fatalf("after round %d:\n%s\nwant:\n%s", cp.round, got, trimmed(cp.board))
		}
	}

	// The last elf died during round 47; the first goblin to act in round 48
	// finds no enemies, so round 48 does not count.
	assert.False(t, battle.Round())
	assert.True(t, battle.Over())
	assert.Equal(t, 47, battle.Rounds())
	assert.Equal(t, 27730, battle.Outcome().Score)
}

var battleCases = []struct {
	name   string
	input  string
	final  string
	rounds int
	hp     int
	score  int
	winner game.Faction
}{
	{"canonical", canonicalMap, `
#######
#G....#   G(200)
#.G...#   G(131)
#.#.#G#   G(59)
#...#.#
#....G#   G(200)
#######`, 47, 590, 27730, game.Goblin},
	{"elves hold", `
#######
#G..#E#
#E#E.E#
#G.##.#
#...#E#
#...E.#
#######`, `
#######
#...#E#   E(200)
#E#...#   E(197)
#.E##.#   E(185)
#E..#E#   E(200), E(200)
#.....#
#######`, 37, 982, 36334, game.Elf},
	{"elves sweep", `
#######
#E..EG#
#.#G.E#
#E.##E#
#G..#.#
#..E#.#
#######`, `
#######
#.E.E.#   E(164), E(197)
#.#E..#   E(200)
#E.##.#   E(98)
#.E.#.#   E(200)
#...#.#
#######`, 46, 859, 39514, game.Elf},
	{"goblins split", `
#######
#E.G#.#
#.#G..#
#G.#.G#
#G..#.#
#...E.#
#######`, `
#######
#G.G#.#   G(200), G(98)
#.#G..#   G(200)
#..#..#
#...#G#   G(95)
#...G.#   G(200)
#######`, 35, 793, 27755, game.Goblin},
	{"corridor", `
#######
#.E...#
#.#..G#
#.###.#
#E#G#G#
#...#G#
#######`, `
#######
#.....#
#.#G..#   G(200)
#.###.#
#.#.#.#
#G.G#G#   G(98), G(38), G(200)
#######`, 54, 536, 28944, game.Goblin},
	{"large", `
#########
#G......#
#.E.#...#
#..##..G#
#...##..#
#...#...#
#.G...G.#
#.....G.#
#########`, `
#########
#.G.....#   G(137)
#G.G#...#   G(200), G(200)
#.G##...#   G(200)
#...##..#
#.G.#...#   G(200)
#.......#
#.......#
#########`, 20, 937, 18740, game.Goblin},
}

func TestRun_Scenarios(t *testing.T) {
	for _, tc := range battleCases {
		t.Run(tc.name, func(t *testing.T) {
			battle := NewBattle(game.MustParse(tc.input))
			outcome, err := battle.Run(context.Background())
			require.NoError(t, err)
			t.Logf("final:\n%s%s", battle.Field().Render(true), outcome)

			assert.Equal(t, tc.rounds, outcome.Rounds)
			assert.Equal(t, tc.hp, outcome.HitPoints)
			assert.Equal(t, tc.score, outcome.Score)
			assert.Equal(t, tc.winner, outcome.Winner)
			assert.Zero(t, outcome.Survivors[tc.winner.Enemy()])
			assert.Equal(t, trimmed(tc.final), trimmed(battle.Field().Render(true)))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	for _, tc := range battleCases {
		// Two independent parses of the same text must replay identically.
		var boards [2][]string
		for i := range boards {
			battle := NewBattle(game.MustParse(tc.input))
			for battle.Round() {
				boards[i] = append(boards[i], battle.Field().Render(true))
			}
		}
		require.Equal(t, boards[0], boards[1], tc.name)
		require.Len(t, boards[0], tc.rounds, tc.name)
	}
}

func TestRun_RoundBoundary(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		rounds int
		score  int
	}{
		// The first elf kills the goblin; the second elf then finds no
		// enemies mid-round, so the round is not counted.
		{"ends mid-round", "#####\n#EGE#\n#####", 0, 0},
		// The killing blow lands on the last turn of the round; every unit
		// had its turn, so the round counts.
		{"ends on last turn", "####\n#GE#\n####", 1, 197},
		// The dead goblin's turn is skipped and nobody else is left to look
		// for enemies before the round finishes.
		{"victim acts last", "####\n#EG#\n####", 1, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, err := NewBattle(game.MustParse(tc.input), WithElfPower(200)).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.rounds, outcome.Rounds)
			assert.Equal(t, tc.score, outcome.Score)
			assert.Equal(t, game.Elf, outcome.Winner)
		})
	}
}

func TestRun_NoEnemiesAtStart(t *testing.T) {
	outcome, err := NewBattle(game.MustParse("#####\n#E.E#\n#####")).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Outcome{Rounds: 0, HitPoints: 400, Score: 0, Winner: game.Elf, Survivors: [2]int{0, 2}}, outcome)
}

func TestRun_Stalemate(t *testing.T) {
	battle := NewBattle(game.MustParse("#####\n#G#E#\n#####"))
	_, err := battle.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStalemate))
	assert.Equal(t, 1, battle.Rounds())
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBattle(game.MustParse(canonicalMap)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBattle_Events(t *testing.T) {
	var events []Event
	battle := NewBattle(game.MustParse(canonicalMap), WithObserver(func(ev Event) {
		events = append(events, ev)
	}))
	require.True(t, battle.Round())

	// Round 1: two goblins step, then four attacks land.
	require.NotEmpty(t, events)
	assert.Equal(t, Event{Kind: Moved, Faction: game.Goblin, From: pt(2, 1), To: pt(3, 1)}, events[0])
	last := events[len(events)-1]
	assert.Equal(t, RoundCompleted, last.Kind)
	assert.Equal(t, 1, last.Round)

	var moves, attacks int
	for _, ev := range events {
		switch ev.Kind {
		case Moved:
			moves++
		case Attacked:
			attacks++
		}
	}
	assert.Equal(t, 2, moves)
	assert.Equal(t, 4, attacks)

	events = events[:0]
	_, err := battle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BattleEnded, events[len(events)-1].Kind)
	assert.Equal(t, 47, events[len(events)-1].Round)

	var kills []Event
	for _, ev := range events {
		if ev.Kind == Killed {
			kills = append(kills, ev)
		}
	}
	require.Len(t, kills, 2)
	for _, k := range kills {
		assert.Equal(t, game.Goblin, k.Faction)
	}
}
