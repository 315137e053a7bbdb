// Package savestate holds the named scalar variables that triggers use as
// guards, keyed by (save slot, variable name). Unset variables read as the
// zero value of the requested kind.
package savestate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nathoo/tilecore/types"
)

// DefaultSlot is the slot used when none is configured.
const DefaultSlot = "default"

// State is the process's save-state store. Safe for concurrent use.
type State struct {
	mu    sync.RWMutex
	slots map[string]map[string]types.Scalar
}

// New creates an empty store.
func New() *State {
	return &State{slots: map[string]map[string]types.Scalar{}}
}

// BoolValue wraps b as a Scalar.
func BoolValue(b bool) types.Scalar { return types.Scalar{Kind: types.ScalarBool, Bool: b} }

// IntValue wraps n as a Scalar.
func IntValue(n int64) types.Scalar { return types.Scalar{Kind: types.ScalarInt, Int: n} }

// FloatValue wraps f as a Scalar.
func FloatValue(f float64) types.Scalar { return types.Scalar{Kind: types.ScalarFloat, Float: f} }

// StringValue wraps s as a Scalar.
func StringValue(s string) types.Scalar { return types.Scalar{Kind: types.ScalarString, String: s} }

// Validate checks that v carries a known kind.
func Validate(v types.Scalar) error {
	switch v.Kind {
	case types.ScalarBool, types.ScalarInt, types.ScalarFloat, types.ScalarString:
		return nil
	}
	return fmt.Errorf("invalid scalar kind %q", v.Kind)
}

// Get returns the variable and whether it is set.
func (s *State) Get(slot, name string) (types.Scalar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.slots[slot][name]
	return v, ok
}

// Set stores v. Writes are visible to the next Get at once.
func (s *State) Set(slot, name string, v types.Scalar) error {
	if name == "" {
		return fmt.Errorf("savestate: empty variable name")
	}
	if err := Validate(v); err != nil {
		return fmt.Errorf("savestate %s/%s: %w", slot, name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slotLocked(slot)[name] = v
	return nil
}

// Delete unsets a variable.
func (s *State) Delete(slot, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots[slot], name)
}

// Bool returns a bool variable. Unset or non-bool variables return false.
func (s *State) Bool(slot, name string) bool {
	v, _ := s.Get(slot, name)
	return v.Kind == types.ScalarBool && v.Bool
}

// SetBool stores a bool variable.
func (s *State) SetBool(slot, name string, b bool) error {
	return s.Set(slot, name, BoolValue(b))
}

// Int returns an int variable. Unset or non-int variables return 0.
func (s *State) Int(slot, name string) int64 {
	v, _ := s.Get(slot, name)
	if v.Kind != types.ScalarInt {
		return 0
	}
	return v.Int
}

// SetInt stores an int variable.
func (s *State) SetInt(slot, name string, n int64) error {
	return s.Set(slot, name, IntValue(n))
}

// Float returns a float variable. Ints are widened.
func (s *State) Float(slot, name string) float64 {
	v, _ := s.Get(slot, name)
	switch v.Kind {
	case types.ScalarFloat:
		return v.Float
	case types.ScalarInt:
		return float64(v.Int)
	}
	return 0
}

// SetFloat stores a float variable.
func (s *State) SetFloat(slot, name string, f float64) error {
	return s.Set(slot, name, FloatValue(f))
}

// Text returns a string variable. Unset or non-string variables return "".
func (s *State) Text(slot, name string) string {
	v, _ := s.Get(slot, name)
	if v.Kind != types.ScalarString {
		return ""
	}
	return v.String
}

// SetText stores a string variable.
func (s *State) SetText(slot, name, str string) error {
	return s.Set(slot, name, StringValue(str))
}

// Keys returns the variable names set in slot, sorted.
func (s *State) Keys(slot string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.slots[slot]))
	for k := range s.slots[slot] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Slots returns the names of every slot holding at least one variable.
func (s *State) Slots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name, vars := range s.slots {
		if len(vars) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Export returns a copy of every variable in slot.
func (s *State) Export(slot string) map[string]types.Scalar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.Scalar, len(s.slots[slot]))
	for k, v := range s.slots[slot] {
		out[k] = v
	}
	return out
}

// Import replaces the whole slot with vars. Nothing is written if any
// value is invalid.
func (s *State) Import(slot string, vars map[string]types.Scalar) error {
	fresh := make(map[string]types.Scalar, len(vars))
	for k, v := range vars {
		if k == "" {
			return fmt.Errorf("savestate %s: empty variable name", slot)
		}
		if err := Validate(v); err != nil {
			return fmt.Errorf("savestate %s/%s: %w", slot, k, err)
		}
		fresh[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = fresh
	return nil
}

// apply writes a batch atomically. A nil value deletes the variable.
func (s *State) apply(slot string, writes map[string]*types.Scalar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vars := s.slotLocked(slot)
	for k, v := range writes {
		if v == nil {
			delete(vars, k)
			continue
		}
		vars[k] = *v
	}
}

func (s *State) slotLocked(slot string) map[string]types.Scalar {
	vars, ok := s.slots[slot]
	if !ok {
		vars = map[string]types.Scalar{}
		s.slots[slot] = vars
	}
	return vars
}

// Slot returns a view of one slot.
func (s *State) Slot(name string) *Slot {
	return &Slot{state: s, name: name}
}

// Slot is a State bound to one save slot.
type Slot struct {
	state *State
	name  string
}

// Name returns the slot name.
func (sl *Slot) Name() string { return sl.name }

// State returns the backing store.
func (sl *Slot) State() *State { return sl.state }

// Get reads name from the slot.
func (sl *Slot) Get(name string) (types.Scalar, bool) {
	return sl.state.Get(sl.name, name)
}

// Set writes name in the slot.
func (sl *Slot) Set(name string, v types.Scalar) error {
	return sl.state.Set(sl.name, name, v)
}

// Delete removes name from the slot.
func (sl *Slot) Delete(name string) {
	sl.state.Delete(sl.name, name)
}

// Bool reads name as a boolean.
func (sl *Slot) Bool(name string) bool {
	return sl.state.Bool(sl.name, name)
}

// SetBool stores a boolean under name.
func (sl *Slot) SetBool(name string, b bool) error {
	return sl.state.SetBool(sl.name, name, b)
}

// Int reads name as an integer.
func (sl *Slot) Int(name string) int64 {
	return sl.state.Int(sl.name, name)
}

// SetInt stores an integer under name.
func (sl *Slot) SetInt(name string, n int64) error {
	return sl.state.SetInt(sl.name, name, n)
}

// Float reads name as a float.
func (sl *Slot) Float(name string) float64 {
	return sl.state.Float(sl.name, name)
}

// SetFloat stores a float under name.
func (sl *Slot) SetFloat(name string, f float64) error {
	return sl.state.SetFloat(sl.name, name, f)
}

// Text reads name as a string.
func (sl *Slot) Text(name string) string {
	return sl.state.Text(sl.name, name)
}

// SetText stores a string under name.
func (sl *Slot) SetText(name, s string) error {
	return sl.state.SetText(sl.name, name, s)
}

// Keys lists the slot's variable names in sorted order.
func (sl *Slot) Keys() []string {
	return sl.state.Keys(sl.name)
}
