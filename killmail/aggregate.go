package killmail

import "github.com/pkg/errors"

// ErrInvalidInput is returned by Aggregate for an empty attacker list.
var ErrInvalidInput = errors.New("killmail has no attackers")

// Facts summarizes the attacker list of a killmail.
type Facts struct {
	// Killer is the attacker who landed the final blow.
	Killer Attacker
	// TopDealer is the attacker credited with the most damage. Players are always preferred over NPCs.
	TopDealer Attacker
	// Count is the total number of attackers.
	Count int
}

// Aggregate derives Facts from attackers.
//
// The killer is the first attacker flagged with the final blow, or the first attacker if none is flagged.
// The top dealer is the first attacker with the greatest damage among the non-NPC attackers. Only if all of them
// are NPCs, it's the first attacker with the greatest damage among all. Thus, the result does not depend on how
// NPC and player attackers are interleaved.
//
// NPC attackers in the result carry a character reference with ID 0 named after their ship type.
func Aggregate(attackers []Attacker) (Facts, error) {
	if len(attackers) == 0 {
		return Facts{}, ErrInvalidInput
	}

	killer := 0
	for i, a := range attackers {
		if a.FinalBlow {
			killer = i
			break
		}
	}

	top := maxDamage(attackers, func(a Attacker) bool { return !a.IsNPC() })
	if top < 0 {
		top = maxDamage(attackers, func(Attacker) bool { return true })
	}

	return Facts{
		Killer:    normalize(attackers[killer]),
		TopDealer: normalize(attackers[top]),
		Count:     len(attackers),
	}, nil
}

// maxDamage returns the index of the first attacker with the greatest damage among those matching filter,
// or -1 if none matches.
func maxDamage(attackers []Attacker, filter func(Attacker) bool) int {
	best := -1
	for i, a := range attackers {
		if !filter(a) {
			continue
		}

		if best < 0 || a.DamageDone > attackers[best].DamageDone {
			best = i
		}
	}

	return best
}

// normalize returns a copy of a where NPCs carry a zero-ID character named after their ship.
func normalize(a Attacker) Attacker {
	if a.IsNPC() {
		a.Character = &EntityRef{ID: 0, Kind: KindCharacter, Name: a.ShipType.Name}
	}

	return a
}
