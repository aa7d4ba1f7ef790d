package rules

import (
	"fmt"

	"github.com/brensch/bandits/game"
)

// Outcome summarises a finished battle.
type Outcome struct {
	Rounds    int
	HitPoints int
	Score     int
	Winner    game.Faction
	// Survivors counts living units per faction, indexed by game.Faction.
	Survivors [2]int
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s win after %d rounds with %d HP left (score %d)", o.Winner, o.Rounds, o.HitPoints, o.Score)
}

// Score is completed rounds times the hit points left across both factions.
func Score(rounds int, b *game.Battlefield) int {
	return rounds * b.TotalHP()
}

// Outcome reports the battle's result so far. Winner is only meaningful once
// Over is true; with both factions standing it reports the faction holding
// more hit points.
func (b *Battle) Outcome() Outcome {
	o := Outcome{
		Rounds:    b.rounds,
		HitPoints: b.field.TotalHP(),
		Score:     Score(b.rounds, b.field),
	}
	hp := [2]int{}
	for _, p := range b.field.Units() {
		t := b.field.At(p)
		o.Survivors[t.Faction]++
		hp[t.Faction] += t.HP
	}
	o.Winner = game.Goblin
	if o.Survivors[game.Goblin] == 0 || (o.Survivors[game.Elf] > 0 && hp[game.Elf] > hp[game.Goblin]) {
		o.Winner = game.Elf
	}
	return o
}
