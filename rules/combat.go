package rules

import "github.com/brensch/bandits/game"

// Strike is the result of one attack.
type Strike struct {
	Target game.Point
	// HP is the target's remaining hit points, 0 if it died.
	HP     int
	Killed bool
}

// SelectTarget picks who a unit of faction f standing at `at` attacks: the
// adjacent enemy with the fewest hit points, ties broken in reading order.
func SelectTarget(b *game.Battlefield, at game.Point, f game.Faction) (game.Point, bool) {
	var (
		target game.Point
		lowest int
		ok     bool
	)
	for _, p := range b.AdjacentEnemies(at, f) {
		hp := b.At(p).HP
		if !ok || hp < lowest || (hp == lowest && p.Less(target)) {
			target, lowest, ok = p, hp, true
		}
	}
	return target, ok
}

// Attack deals power damage to the unit at target, removing it if its hit
// points drop to zero or below.
func Attack(b *game.Battlefield, target game.Point, power int) Strike {
	hp, killed := b.Damage(target, power)
	return Strike{Target: target, HP: hp, Killed: killed}
}
