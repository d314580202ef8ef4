package killmail

import (
	"fmt"
	"strconv"
)

// Kind is the type of an EVE entity a killmail may reference.
type Kind string

const (
	KindCharacter   Kind = "character"
	KindCorporation Kind = "corporation"
	KindAlliance    Kind = "alliance"
)

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (k *Kind) UnmarshalText(text []byte) error {
	switch v := Kind(text); v {
	case KindCharacter, KindCorporation, KindAlliance:
		*k = v
		return nil
	default:
		return fmt.Errorf("unknown entity kind %q", string(text))
	}
}

// MarshalText implements the encoding.TextMarshaler interface.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k), nil
}

// EntityRef references a character, corporation or alliance.
// A nil *EntityRef means the entity is absent, e.g. an NPC attacker without a character.
type EntityRef struct {
	ID   int64  `json:"id"`
	Kind Kind   `json:"-"`
	Name string `json:"name"`
}

// Equal reports whether r and other identify the same entity. Names are not compared.
// A nil reference never equals anything.
func (r *EntityRef) Equal(other EntityRef) bool {
	return r != nil && r.ID == other.ID && r.Kind == other.Kind
}

// String implements the fmt.Stringer interface.
func (r EntityRef) String() string {
	return string(r.Kind) + ":" + strconv.FormatInt(r.ID, 10)
}

// TypeRef references an inventory type, e.g. a ship.
type TypeRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LocationRef references a solar system, constellation or region.
// Href is the absolute address of the resource at the reference service, if the feed provided one.
type LocationRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Href string `json:"href"`
}

// withKind returns r with its Kind set to kind. Nil stays nil.
func withKind(r *EntityRef, kind Kind) *EntityRef {
	if r == nil {
		return nil
	}

	r.Kind = kind
	return r
}
