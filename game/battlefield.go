package game

import (
	"fmt"
	"strings"
)

// Battlefield is the rectangular map a battle is fought on.
//
// Tiles are stored densely in row-major order, so index order is reading
// order. A Battlefield has a single owner for the duration of a battle; use
// Clone to give an independent copy to another battle.
type Battlefield struct {
	width  int
	height int
	tiles  []Tile
}

func newBattlefield(width, height int) *Battlefield {
	return &Battlefield{
		width:  width,
		height: height,
		tiles:  make([]Tile, width*height),
	}
}

// Clone performs a deep copy of the battlefield.
func (b *Battlefield) Clone() *Battlefield {
	if b == nil {
		return nil
	}
	out := &Battlefield{width: b.width, height: b.height, tiles: make([]Tile, len(b.tiles))}
	copy(out.tiles, b.tiles)
	return out
}

func (b *Battlefield) Width() int  { return b.width }
func (b *Battlefield) Height() int { return b.height }

// Contains reports whether p lies inside the map rectangle.
func (b *Battlefield) Contains(p Point) bool {
	return p.X >= 0 && p.X < b.width && p.Y >= 0 && p.Y < b.height
}

// At returns the tile at p. Looking outside the map is a caller bug.
func (b *Battlefield) At(p Point) Tile {
	if !b.Contains(p) {
		panic(fmt.Sprintf("game: point %v outside %dx%d map", p, b.width, b.height))
	}
	return b.tiles[p.Y*b.width+p.X]
}

// look is At for neighbour queries: squares past the edge behave as walls.
func (b *Battlefield) look(p Point) Tile {
	if !b.Contains(p) {
		return wallTile
	}
	return b.tiles[p.Y*b.width+p.X]
}

func (b *Battlefield) set(p Point, t Tile) {
	b.tiles[p.Y*b.width+p.X] = t
}

// IsEmpty reports whether p is open floor. Points outside the map are not.
func (b *Battlefield) IsEmpty(p Point) bool {
	return b.look(p).Kind == Empty
}

// AdjacentEmpty returns the open orthogonal neighbours of p in reading order.
func (b *Battlefield) AdjacentEmpty(p Point) []Point {
	out := make([]Point, 0, 4)
	for _, n := range p.Orthogonals() {
		if b.look(n).Kind == Empty {
			out = append(out, n)
		}
	}
	return out
}

// AdjacentEnemies returns the orthogonal neighbours of p holding a living unit
// opposed to f, in reading order.
func (b *Battlefield) AdjacentEnemies(p Point, f Faction) []Point {
	enemy := f.Enemy()
	out := make([]Point, 0, 4)
	for _, n := range p.Orthogonals() {
		if b.look(n).IsUnitOf(enemy) {
			out = append(out, n)
		}
	}
	return out
}

// Units returns every living unit sorted in reading order. This is the turn
// sequence for one round.
func (b *Battlefield) Units() []Point {
	var out []Point
	for i, t := range b.tiles {
		if t.IsUnit() {
			out = append(out, b.point(i))
		}
	}
	// Index order already is reading order; sort anyway so the turn sequence
	// never depends on storage layout.
	return SortReading(out)
}

// UnitsOf returns the living units of faction f in reading order.
func (b *Battlefield) UnitsOf(f Faction) []Point {
	var out []Point
	for i, t := range b.tiles {
		if t.IsUnitOf(f) {
			out = append(out, b.point(i))
		}
	}
	return SortReading(out)
}

// InRange returns the open squares next to any living unit of faction f,
// deduplicated and in reading order. These are the squares an attacker of
// f.Enemy() can move to in order to strike.
func (b *Battlefield) InRange(f Faction) []Point {
	seen := make(map[Point]struct{})
	var out []Point
	for _, u := range b.UnitsOf(f) {
		for _, n := range b.AdjacentEmpty(u) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return SortReading(out)
}

// Move steps the unit at from onto the adjacent open square to. The source is
// cleared and the destination written in one call; anything else is a caller
// bug.
func (b *Battlefield) Move(from, to Point) {
	src := b.At(from)
	if !src.IsUnit() {
		panic(fmt.Sprintf("game: move from %v: no unit there", from))
	}
	if !from.Adjacent(to) {
		panic(fmt.Sprintf("game: move %v -> %v: not a single orthogonal step", from, to))
	}
	if dst := b.At(to); dst.Kind != Empty {
		panic(fmt.Sprintf("game: move %v -> %v: destination holds %q", from, to, dst.Rune()))
	}
	b.set(to, src)
	b.set(from, emptyTile)
}

// Damage subtracts amount from the unit at p. A unit brought to zero or below
// is removed and its square becomes open floor immediately.
func (b *Battlefield) Damage(p Point, amount int) (hp int, killed bool) {
	t := b.At(p)
	if !t.IsUnit() {
		panic(fmt.Sprintf("game: damage at %v: no unit there", p))
	}
	t.HP -= amount
	if t.HP <= 0 {
		b.set(p, emptyTile)
		return 0, true
	}
	b.set(p, t)
	return t.HP, false
}

// Count returns the number of living units of faction f.
func (b *Battlefield) Count(f Faction) int {
	n := 0
	for _, t := range b.tiles {
		if t.IsUnitOf(f) {
			n++
		}
	}
	return n
}

// TotalHP sums the hit points of every living unit of both factions.
func (b *Battlefield) TotalHP() int {
	hp := 0
	for _, t := range b.tiles {
		if t.IsUnit() {
			hp += t.HP
		}
	}
	return hp
}

func (b *Battlefield) point(i int) Point {
	return Point{X: i % b.width, Y: i / b.width}
}

// Rows returns the map as text rows without unit details.
func (b *Battlefield) Rows() []string {
	rows := make([]string, b.height)
	var sb strings.Builder
	for y := 0; y < b.height; y++ {
		sb.Reset()
		for x := 0; x < b.width; x++ {
			sb.WriteRune(b.tiles[y*b.width+x].Rune())
		}
		rows[y] = sb.String()
	}
	return rows
}

// Render draws the map. With details, each row that holds units is followed by
// their hit points in reading order:
//
//	#..GEG#   G(200), E(188), G(194)
func (b *Battlefield) Render(details bool) string {
	var sb strings.Builder
	for y, row := range b.Rows() {
		sb.WriteString(row)
		if details {
			var units []string
			for x := 0; x < b.width; x++ {
				if t := b.tiles[y*b.width+x]; t.IsUnit() {
					units = append(units, t.String())
				}
			}
			if len(units) > 0 {
				sb.WriteString("   ")
				sb.WriteString(strings.Join(units, ", "))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (b *Battlefield) String() string {
	return b.Render(false)
}
