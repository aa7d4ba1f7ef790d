package game

import "fmt"

const (
	// StartingHP is the hit points every unit spawns with.
	StartingHP = 200
	// BasePower is the attack power of both factions unless overridden.
	BasePower = 3
)

// Faction is one of the two opposing sides. Units never change faction.
type Faction uint8

const (
	Goblin Faction = iota
	Elf
)

// Factions lists every faction in a stable order.
var Factions = [...]Faction{Goblin, Elf}

// Enemy returns the opposing faction.
func (f Faction) Enemy() Faction {
	if f == Goblin {
		return Elf
	}
	return Goblin
}

// Rune is the map character that spawns a unit of f.
func (f Faction) Rune() rune {
	if f == Goblin {
		return 'G'
	}
	return 'E'
}

func (f Faction) String() string {
	switch f {
	case Goblin:
		return "goblin"
	case Elf:
		return "elf"
	default:
		return fmt.Sprintf("faction(%d)", uint8(f))
	}
}

// ParseFaction maps "goblin"/"elf" (or the map runes) back to a Faction.
func ParseFaction(s string) (Faction, error) {
	switch s {
	case "goblin", "G":
		return Goblin, nil
	case "elf", "E":
		return Elf, nil
	}
	return 0, fmt.Errorf("unknown faction %q", s)
}

// Kind is the closed set of things a square can hold.
type Kind uint8

const (
	Empty Kind = iota
	Wall
	Unit
)

// Tile is the content of one square. Faction and HP are only meaningful when
// Kind is Unit, and a Unit tile always has HP > 0.
type Tile struct {
	Kind    Kind
	Faction Faction
	HP      int
}

var (
	emptyTile = Tile{Kind: Empty}
	wallTile  = Tile{Kind: Wall}
)

// NewUnit returns a full-health unit tile.
func NewUnit(f Faction) Tile {
	return Tile{Kind: Unit, Faction: f, HP: StartingHP}
}

// IsUnit reports whether t holds a living unit.
func (t Tile) IsUnit() bool { return t.Kind == Unit }

// IsUnitOf reports whether t holds a living unit of faction f.
func (t Tile) IsUnitOf(f Faction) bool { return t.Kind == Unit && t.Faction == f }

// Rune is the map character for t.
func (t Tile) Rune() rune {
	switch t.Kind {
	case Wall:
		return '#'
	case Unit:
		return t.Faction.Rune()
	default:
		return '.'
	}
}

// String renders units with their hit points, e.g. "G(131)".
func (t Tile) String() string {
	if t.Kind == Unit {
		return fmt.Sprintf("%c(%d)", t.Rune(), t.HP)
	}
	return string(t.Rune())
}

func tileFromRune(r rune) (Tile, bool) {
	switch r {
	case '.':
		return emptyTile, true
	case '#':
		return wallTile, true
	case 'G':
		return NewUnit(Goblin), true
	case 'E':
		return NewUnit(Elf), true
	}
	return Tile{}, false
}
