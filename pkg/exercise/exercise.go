// Package exercise enumerates the exercise modes a session can count.
package exercise

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when parsing a name that is not an exercise.
var ErrUnknownKind = errors.New("exercise: unknown kind")

// Kind selects which feature extractor and rep counter are active.
// It changes only on explicit selection, never from frame data.
type Kind int

const (
	Situps Kind = iota + 1
	Squats
	Pushups
	Lunges
)

var names = map[Kind]string{
	Situps:  "situps",
	Squats:  "squats",
	Pushups: "pushups",
	Lunges:  "lunges",
}

// All returns every selectable kind, implemented or not.
func All() []Kind {
	return []Kind{Situps, Squats, Pushups, Lunges}
}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := names[k]
	return ok
}

// Implemented reports whether a feature extractor and counter exist for k.
// Lunges is selectable but has no counting logic yet.
func (k Kind) Implemented() bool {
	switch k {
	case Situps, Squats, Pushups:
		return true
	default:
		return false
	}
}

// ParseKind parses a kind name case-insensitively. "sit-ups" style
// hyphenation is accepted.
func ParseKind(s string) (Kind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "")
	for k, n := range names {
		if n == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
