package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/brensch/bandits/game"
)

// ErrStalemate is returned when a full round passes without a single move or
// attack while both factions still stand. The battle state is then a fixed
// point and further rounds would repeat forever.
var ErrStalemate = errors.New("stalemate: no unit can move or attack")

// EventKind identifies what happened in an Event.
type EventKind uint8

const (
	Moved EventKind = iota
	Attacked
	Killed
	RoundCompleted
	BattleEnded
)

func (k EventKind) String() string {
	switch k {
	case Moved:
		return "moved"
	case Attacked:
		return "attacked"
	case Killed:
		return "killed"
	case RoundCompleted:
		return "round_completed"
	case BattleEnded:
		return "battle_ended"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event describes one state change. Round is the number of completed rounds
// when the event fires: moves in the first round report 0, and the
// RoundCompleted event closing that round reports 1.
//
// Moved: From -> To. Attacked/Killed: the unit at From hit Target, leaving HP.
// RoundCompleted and BattleEnded carry only Round.
type Event struct {
	Round   int
	Kind    EventKind
	Faction game.Faction
	From    game.Point
	To      game.Point
	Target  game.Point
	HP      int
}

// Battle runs the turn engine over a battlefield it owns.
type Battle struct {
	field    *game.Battlefield
	power    [2]int
	rounds   int
	over     bool
	observer func(Event)
}

// BattleOption customises a Battle.
type BattleOption func(*Battle)

// WithElfPower sets the elves' attack power.
func WithElfPower(p int) BattleOption {
	return func(b *Battle) { b.power[game.Elf] = p }
}

// WithGoblinPower sets the goblins' attack power.
func WithGoblinPower(p int) BattleOption {
	return func(b *Battle) { b.power[game.Goblin] = p }
}

// WithObserver receives every event synchronously, in the order it happens.
func WithObserver(fn func(Event)) BattleOption {
	return func(b *Battle) { b.observer = fn }
}

// NewBattle takes ownership of field. Callers that need the original map
// afterwards should pass a Clone.
func NewBattle(field *game.Battlefield, opts ...BattleOption) *Battle {
	b := &Battle{
		field: field,
		power: [2]int{game.Goblin: game.BasePower, game.Elf: game.BasePower},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Battle) Field() *game.Battlefield { return b.field }

// Rounds is the number of fully completed rounds so far.
func (b *Battle) Rounds() int { return b.rounds }

// Power returns the attack power of faction f in this battle.
func (b *Battle) Power(f game.Faction) int { return b.power[f] }

// Over reports whether a unit has found no enemies left to fight.
func (b *Battle) Over() bool { return b.over }

func (b *Battle) emit(ev Event) {
	if b.observer != nil {
		ev.Round = b.rounds
		b.observer(ev)
	}
}

// Round plays one round. Turn order is the reading order of units at the start
// of the round; a unit that dies before its turn is skipped. It returns false
// when some unit found no enemies left, in which case the round does not count
// as completed and the battle is over.
func (b *Battle) Round() bool {
	completed, _ := b.round()
	return completed
}

// round also reports whether any unit moved or attacked.
func (b *Battle) round() (completed, acted bool) {
	if b.over {
		return false, false
	}
	for _, start := range b.field.Units() {
		tile := b.field.At(start)
		if !tile.IsUnit() {
			// Killed earlier this round. Units only ever step onto empty
			// squares, so a living unit here is the one the snapshot captured.
			continue
		}
		turn, ended := b.takeTurn(start, tile.Faction)
		if ended {
			b.over = true
			b.emit(Event{Kind: BattleEnded})
			return false, acted
		}
		acted = acted || turn
	}
	b.rounds++
	b.emit(Event{Kind: RoundCompleted})
	return true, acted
}

// takeTurn resolves move-then-attack for the unit at pos. ended is true when
// the unit has no enemies left anywhere.
func (b *Battle) takeTurn(pos game.Point, f game.Faction) (acted, ended bool) {
	if len(b.field.AdjacentEnemies(pos, f)) == 0 {
		if b.field.Count(f.Enemy()) == 0 {
			return false, true
		}
		inRange := b.field.InRange(f.Enemy())
		if len(inRange) == 0 {
			return false, false
		}
		step, ok := ChooseStep(ShortestPaths(b.field, pos, inRange))
		if !ok {
			return false, false
		}
		b.field.Move(pos, step.First)
		b.emit(Event{Kind: Moved, Faction: f, From: pos, To: step.First})
		pos = step.First
		acted = true
	}

	target, ok := SelectTarget(b.field, pos, f)
	if !ok {
		return acted, false
	}
	strike := Attack(b.field, target, b.power[f])
	kind := Attacked
	if strike.Killed {
		kind = Killed
	}
	b.emit(Event{Kind: kind, Faction: f, From: pos, Target: target, HP: strike.HP})
	return true, false
}

// Run plays rounds until one faction is wiped out and returns the outcome.
// It checks ctx between rounds.
func (b *Battle) Run(ctx context.Context) (Outcome, error) {
	for !b.over {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if b.field.Count(game.Goblin) == 0 || b.field.Count(game.Elf) == 0 {
			b.over = true
			b.emit(Event{Kind: BattleEnded})
			break
		}
		completed, acted := b.round()
		if completed && !acted {
			return Outcome{}, fmt.Errorf("after %d rounds: %w", b.rounds, ErrStalemate)
		}
	}
	return b.Outcome(), nil
}
