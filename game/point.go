// Package game defines the battlefield model for the Beverage Bandits combat
// simulation: points, tiles and the mutable map units fight over.
//
// Every tie in the simulation is broken in reading order: top-to-bottom, then
// left-to-right. (0,0) is the top-left corner and Y grows downward, matching the
// order in which map text is read.
package game

import (
	"cmp"
	"fmt"
	"slices"
)

// Point is a map coordinate.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Less reports whether p comes before q in reading order.
func (p Point) Less(q Point) bool {
	return ReadingOrder(p, q) < 0
}

// Orthogonals returns the four neighbours of p, already in reading order:
// up, left, right, down.
func (p Point) Orthogonals() [4]Point {
	return [4]Point{
		{X: p.X, Y: p.Y - 1},
		{X: p.X - 1, Y: p.Y},
		{X: p.X + 1, Y: p.Y},
		{X: p.X, Y: p.Y + 1},
	}
}

// Adjacent reports whether p and q are orthogonal neighbours.
func (p Point) Adjacent(q Point) bool {
	dx, dy := p.X-q.X, p.Y-q.Y
	return (dx == 0 && (dy == 1 || dy == -1)) || (dy == 0 && (dx == 1 || dx == -1))
}

// ReadingOrder compares a and b by row, then column. It has the signature
// slices.SortFunc expects.
func ReadingOrder(a, b Point) int {
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}

// SortReading sorts ps in place in reading order and returns it.
func SortReading(ps []Point) []Point {
	slices.SortFunc(ps, ReadingOrder)
	return ps
}

// FirstInReading returns the reading-order minimum of ps.
// ok is false when ps is empty.
func FirstInReading(ps []Point) (first Point, ok bool) {
	if len(ps) == 0 {
		return Point{}, false
	}
	return slices.MinFunc(ps, ReadingOrder), true
}
