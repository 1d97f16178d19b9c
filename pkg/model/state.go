package model

import (
	"fmt"
	"sort"
	"strings"
)

// State maps fluent groundings to values. Values are bool, int64 or float64
// depending on the fluent kind.
type State struct {
	values map[string]interface{}
}

// NewState creates an empty state.
func NewState() *State {
	return &State{values: make(map[string]interface{})}
}

// Key returns the canonical key of a fluent grounding, e.g. robot_at(l1).
func Key(fluent string, args []string) string {
	return fluent + "(" + strings.Join(args, ",") + ")"
}

// Get returns the value stored under key.
func (s *State) Get(key string) (interface{}, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Lookup returns the value of a fluent grounding.
func (s *State) Lookup(fluent string, args ...string) (interface{}, bool) {
	return s.Get(Key(fluent, args))
}

// Set stores a value under key.
func (s *State) Set(key string, value interface{}) {
	s.values[key] = value
}

// Len returns the number of stored groundings.
func (s *State) Len() int {
	return len(s.values)
}

// Clone returns an independent copy of the state.
func (s *State) Clone() *State {
	c := &State{values: make(map[string]interface{}, len(s.values))}
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

// Keys returns the stored keys in sorted order.
func (s *State) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the underlying map.
func (s *State) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// String renders the state as sorted key=value lines.
func (s *State) String() string {
	var b strings.Builder
	for i, k := range s.Keys() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s=%v", k, s.values[k])
	}
	return b.String()
}
