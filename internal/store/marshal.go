package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/lstar/internal/automaton"
)

// marshalJSON renders v as compact JSON TEXT with HTML escaping disabled,
// so symbols like "<" are stored as written.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// marshalInput stores a word as a JSON array so symbols may contain spaces.
func marshalInput(input []string) (string, error) {
	if input == nil {
		input = []string{}
	}
	s, err := marshalJSON(input)
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}
	return s, nil
}

func unmarshalInput(s string) ([]string, error) {
	var input []string
	if err := json.Unmarshal([]byte(s), &input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	if input == nil {
		input = []string{}
	}
	return input, nil
}

func marshalSnapshot(snap automaton.Snapshot) (string, error) {
	s, err := marshalJSON(snap)
	if err != nil {
		return "", fmt.Errorf("marshal hypothesis: %w", err)
	}
	return s, nil
}

func unmarshalSnapshot(s string) (automaton.Snapshot, error) {
	var snap automaton.Snapshot
	if err := json.Unmarshal([]byte(s), &snap); err != nil {
		return snap, fmt.Errorf("unmarshal hypothesis: %w", err)
	}
	return snap, nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
