package domain

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// LearningState is the stage of a card in the review lifecycle.
// The zero value is New so freshly stored rows need no explicit state.
type LearningState int

const (
	New LearningState = iota
	Learning
	Review
	Relearning
)

var (
	stateNames  = [...]string{New: "NEW", Learning: "LEARNING", Review: "REVIEW", Relearning: "RELEARNING"}
	stateByName = map[string]LearningState{
		"NEW":        New,
		"LEARNING":   Learning,
		"REVIEW":     Review,
		"RELEARNING": Relearning,
	}
)

var (
	_ fmt.Stringer             = LearningState(0)
	_ encoding.TextMarshaler   = LearningState(0)
	_ encoding.TextUnmarshaler = (*LearningState)(nil)
)

// IsValid reports whether s is one of the four known states.
func (s LearningState) IsValid() bool {
	return s >= New && s <= Relearning
}

// String returns the state name. For invalid values it returns "LearningState(n)".
func (s LearningState) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("LearningState(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s LearningState) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid learning state: %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LearningState) UnmarshalText(text []byte) error {
	v, ok := stateByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid learning state: %q", text)
	}
	*s = v
	return nil
}

// MarshalJSON encodes the state as a JSON string.
func (s LearningState) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON decodes a JSON string state.
func (s *LearningState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid learning state: %s", data)
	}
	return s.UnmarshalText([]byte(str))
}
