// Package rules implements the Beverage Bandits combat rules: movement by
// shortest path, attacks, the round-based turn engine and the elf power search.
package rules

import (
	"slices"

	"github.com/brensch/bandits/game"
)

// Path summarises one shortest route: the square the unit steps onto this turn,
// the in-range square it ends up on, and the number of steps to get there.
type Path struct {
	First  game.Point
	Target game.Point
	Length int
}

func comparePaths(a, b Path) int {
	if c := game.ReadingOrder(a.Target, b.Target); c != 0 {
		return c
	}
	return game.ReadingOrder(a.First, b.First)
}

// ShortestPaths finds every minimum-length route from `from` to any square in
// `to`, walking only over open floor.
//
// One breadth-first search runs per open neighbour of `from`, so each route is
// tagged with its first step without reconstructing full paths. A search stops
// at the end of the first layer that reaches a target, and gives up once it is
// deeper than the best length already found.
//
// The result is sorted by target, then first step, in reading order. It is empty
// when `from` is boxed in or nothing in `to` is reachable.
func ShortestPaths(b *game.Battlefield, from game.Point, to []game.Point) []Path {
	if len(to) == 0 {
		return nil
	}
	targets := make(map[game.Point]struct{}, len(to))
	for _, p := range to {
		targets[p] = struct{}{}
	}

	best := 0
	var paths []Path
	for _, start := range b.AdjacentEmpty(from) {
		found := searchFrom(b, from, start, targets, best)
		if len(found) == 0 {
			continue
		}
		length := found[0].Length
		switch {
		case best == 0 || length < best:
			best = length
			paths = append(paths[:0], found...)
		case length == best:
			paths = append(paths, found...)
		}
	}

	slices.SortFunc(paths, comparePaths)
	return slices.CompactFunc(paths, func(a, b Path) bool { return comparePaths(a, b) == 0 })
}

// searchFrom runs the layered search for a single first step. limit caps the
// depth (0 means no cap). All returned paths share the same Length.
func searchFrom(b *game.Battlefield, from, start game.Point, targets map[game.Point]struct{}, limit int) []Path {
	visited := map[game.Point]struct{}{from: {}, start: {}}
	frontier := []game.Point{start}
	var next []game.Point

	for distance := 1; len(frontier) > 0; distance++ {
		if limit > 0 && distance > limit {
			return nil
		}

		var found []Path
		next = next[:0]
		for _, p := range frontier {
			if _, ok := targets[p]; ok {
				found = append(found, Path{First: start, Target: p, Length: distance})
			}
			for _, n := range b.AdjacentEmpty(p) {
				if _, ok := visited[n]; ok {
					continue
				}
				visited[n] = struct{}{}
				next = append(next, n)
			}
		}
		if len(found) > 0 {
			return found
		}
		frontier, next = next, frontier
	}
	return nil
}

// ChooseStep applies the movement tie-break to the output of ShortestPaths:
// the reading-order first target wins, then the reading-order first step
// towards that target.
func ChooseStep(paths []Path) (Path, bool) {
	if len(paths) == 0 {
		return Path{}, false
	}
	shortest := paths[0].Length
	for _, p := range paths[1:] {
		shortest = min(shortest, p.Length)
	}

	var chosen Path
	ok := false
	for _, p := range paths {
		if p.Length != shortest {
			continue
		}
		if !ok || comparePaths(p, chosen) < 0 {
			chosen, ok = p, true
		}
	}
	return chosen, ok
}
