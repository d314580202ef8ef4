package killmail

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRelevant(t *testing.T) {
	watched := EntityRef{ID: 99000001, Kind: KindAlliance}

	victimMatch := &Killmail{
		Victim:    Victim{Alliance: &EntityRef{ID: 99000001, Kind: KindAlliance}},
		Attackers: []Attacker{{DamageDone: 1}},
	}
	attackerMatch := &Killmail{
		Victim: Victim{Alliance: &EntityRef{ID: 1, Kind: KindAlliance}},
		Attackers: []Attacker{
			{Alliance: nil},
			{Alliance: &EntityRef{ID: 99000001, Kind: KindAlliance}},
		},
	}
	noMatch := &Killmail{
		Victim: Victim{Corporation: &EntityRef{ID: 99000001, Kind: KindCorporation}},
		Attackers: []Attacker{
			{Corporation: &EntityRef{ID: 99000001, Kind: KindCorporation}},
			{Character: &EntityRef{ID: 99000001, Kind: KindCharacter}},
		},
	}
	noRefs := &Killmail{Attackers: []Attacker{{}}}

	tests := []struct {
		name     string
		km       *Killmail
		matchAll bool
		expected bool
	}{
		{"victim", victimMatch, false, true},
		{"attacker", attackerMatch, false, true},
		{"same-id-other-kind", noMatch, false, false},
		{"no-refs", noRefs, false, false},
		{"all-no-refs", noRefs, true, true},
		{"all-no-match", noMatch, true, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, IsRelevant(test.km, watched, test.matchAll))
		})
	}
}

func TestIsRelevant_Corporation(t *testing.T) {
	watched := EntityRef{ID: 98000002, Kind: KindCorporation}
	km := &Killmail{
		Victim:    Victim{Corporation: &EntityRef{ID: 98000001, Kind: KindCorporation}},
		Attackers: []Attacker{{Corporation: &EntityRef{ID: 98000002, Kind: KindCorporation}}},
	}

	require.True(t, IsRelevant(km, watched, false))
	require.False(t, IsRelevant(km, EntityRef{ID: 98000002, Kind: KindAlliance}, false))
}
