package model

import (
	"fmt"
	"strings"
)

// Direction selects which reserve a swap pays into.
type Direction uint8

const (
	XToY Direction = iota + 1
	YToX
)

func (d Direction) String() string {
	switch d {
	case XToY:
		return "x-to-y"
	case YToX:
		return "y-to-x"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d is one of the two swap directions.
func (d Direction) Valid() bool {
	return d == XToY || d == YToX
}

// ParseDirection accepts "x-to-y"/"y-to-x" and the short forms "x"/"y".
func ParseDirection(input string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "x-to-y", "xtoy", "x":
		return XToY, nil
	case "y-to-x", "ytox", "y":
		return YToX, nil
	default:
		return 0, fmt.Errorf("invalid direction: %q", input)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction: %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
