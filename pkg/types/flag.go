// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
)

// Flag is a tri-state annotation value. The zero value is FlagUnknown so a
// flag that no layer has set can never be mistaken for a true negative.
type Flag uint8

const (
	FlagUnknown Flag = iota
	FlagFalse
	FlagTrue
)

// FlagOf converts a rule outcome into a definite flag.
func FlagOf(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// String returns "unknown", "false", or "true".
func (f Flag) String() string {
	switch f {
	case FlagFalse:
		return "false"
	case FlagTrue:
		return "true"
	default:
		return "unknown"
	}
}

// CSV returns the flat-file form: "1", "0", or "NA".
func (f Flag) CSV() string {
	switch f {
	case FlagFalse:
		return "0"
	case FlagTrue:
		return "1"
	default:
		return "NA"
	}
}

// IsTrue reports whether the flag is definitely true.
func (f Flag) IsTrue() bool { return f == FlagTrue }

// IsKnown reports whether the flag carries a definite value.
func (f Flag) IsKnown() bool { return f == FlagTrue || f == FlagFalse }

// ParseFlag accepts the text and CSV forms.
func ParseFlag(s string) (Flag, error) {
	switch s {
	case "true", "1":
		return FlagTrue, nil
	case "false", "0":
		return FlagFalse, nil
	case "unknown", "NA", "":
		return FlagUnknown, nil
	}
	return FlagUnknown, fmt.Errorf("invalid flag value %q", s)
}

func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseFlag(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f Flag) MarshalYAML() (any, error) {
	return f.String(), nil
}
