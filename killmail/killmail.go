package killmail

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Attacker is one of the parties involved in a kill.
type Attacker struct {
	Character   *EntityRef `json:"character"`
	Corporation *EntityRef `json:"corporation"`
	Alliance    *EntityRef `json:"alliance"`
	ShipType    TypeRef    `json:"shipType"`
	DamageDone  int64      `json:"damageDone"`
	FinalBlow   bool       `json:"finalBlow"`
}

// IsNPC reports whether the attacker lacks a resolvable character identity.
func (a Attacker) IsNPC() bool {
	return a.Character == nil || a.Character.ID == 0
}

// Ref returns the attacker's reference of the given kind, or nil.
func (a Attacker) Ref(kind Kind) *EntityRef {
	return ref(kind, a.Character, a.Corporation, a.Alliance)
}

// DisplayName returns the character name, or the ship type name for NPCs.
func (a Attacker) DisplayName() string {
	if a.IsNPC() {
		return a.ShipType.Name
	}

	return a.Character.Name
}

// CharacterID returns the character ID, which is 0 for NPCs.
func (a Attacker) CharacterID() int64 {
	if a.IsNPC() {
		return 0
	}

	return a.Character.ID
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (a *Attacker) UnmarshalJSON(data []byte) error {
	type attacker Attacker
	var v attacker
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*a = Attacker(v)
	a.Character = withKind(a.Character, KindCharacter)
	a.Corporation = withKind(a.Corporation, KindCorporation)
	a.Alliance = withKind(a.Alliance, KindAlliance)

	return nil
}

// Victim is the party that died.
type Victim struct {
	Character   *EntityRef `json:"character"`
	Corporation *EntityRef `json:"corporation"`
	Alliance    *EntityRef `json:"alliance"`
	ShipType    TypeRef    `json:"shipType"`
	DamageTaken int64      `json:"damageTaken"`
}

// Ref returns the victim's reference of the given kind, or nil.
func (v Victim) Ref(kind Kind) *EntityRef {
	return ref(kind, v.Character, v.Corporation, v.Alliance)
}

// DisplayName returns the character name. Victims without a character, e.g. structures
// or NPC ships, are displayed by their ship type name.
func (v Victim) DisplayName() string {
	if v.Character == nil || v.Character.ID == 0 {
		return v.ShipType.Name
	}

	return v.Character.Name
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (v *Victim) UnmarshalJSON(data []byte) error {
	type victim Victim
	var vv victim
	if err := json.Unmarshal(data, &vv); err != nil {
		return err
	}

	*v = Victim(vv)
	v.Character = withKind(v.Character, KindCharacter)
	v.Corporation = withKind(v.Corporation, KindCorporation)
	v.Alliance = withKind(v.Alliance, KindAlliance)

	return nil
}

// Killmail is the record of one death.
type Killmail struct {
	KillID      int64       `json:"killID"`
	KillTime    string      `json:"killTime"`
	SolarSystem LocationRef `json:"solarSystem"`
	Victim      Victim      `json:"victim"`
	Attackers   []Attacker  `json:"attackers"`
}

// Zkb carries the zKillboard metadata of a kill.
type Zkb struct {
	TotalValue float64 `json:"totalValue"`
	Hash       string  `json:"hash"`
	Points     int     `json:"points"`
	NPC        bool    `json:"npc"`
	Solo       bool    `json:"solo"`
}

// Frame is one message received from the killmail feed.
type Frame struct {
	KillID   int64     `json:"killID"`
	Killmail *Killmail `json:"killmail"`
	Zkb      Zkb       `json:"zkb"`
}

// DecodeError is returned by Decode for frames that can't be turned into a Frame.
type DecodeError struct {
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return "can't decode feed frame: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses a raw feed message. Every failure is reported as *DecodeError.
func Decode(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &DecodeError{Err: errors.Wrap(err, "invalid JSON")}
	}

	if f.Killmail == nil {
		return nil, &DecodeError{Err: errors.New("frame carries no killmail")}
	}

	if f.KillID == 0 {
		f.KillID = f.Killmail.KillID
	}

	return &f, nil
}

func ref(kind Kind, character, corporation, alliance *EntityRef) *EntityRef {
	switch kind {
	case KindCharacter:
		return character
	case KindCorporation:
		return corporation
	case KindAlliance:
		return alliance
	default:
		return nil
	}
}
