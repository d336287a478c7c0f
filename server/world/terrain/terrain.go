package terrain

import (
	"fmt"
	"strings"
)

// Type is the terrain type of a single tile. The set of types is closed: every
// Type value produced by a Classifier is one of the constants below.
type Type uint8

const (
	Water Type = iota
	Sand
	Grass
	Forest
	Rock
	Snow
)

// Types returns all terrain types in ascending elevation order.
func Types() []Type {
	return []Type{Water, Sand, Grass, Forest, Rock, Snow}
}

// String returns the lower case name of the Type.
func (t Type) String() string {
	switch t {
	case Water:
		return "water"
	case Sand:
		return "sand"
	case Grass:
		return "grass"
	case Forest:
		return "forest"
	case Rock:
		return "rock"
	case Snow:
		return "snow"
	}
	panic(fmt.Sprintf("terrain: invalid type %d", uint8(t)))
}

// Valid reports if t is one of the known terrain types.
func (t Type) Valid() bool {
	return t <= Snow
}

// ParseType parses a terrain type by its name, as returned by Type.String.
// Parsing is case-insensitive.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "water":
		return Water, nil
	case "sand":
		return Sand, nil
	case "grass":
		return Grass, nil
	case "forest":
		return Forest, nil
	case "rock":
		return Rock, nil
	case "snow":
		return Snow, nil
	}
	return 0, fmt.Errorf("terrain: unknown type %q", name)
}

// MarshalText ...
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("terrain: invalid type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText ...
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
