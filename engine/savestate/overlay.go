package savestate

import (
	"fmt"
	"sort"

	"github.com/nathoo/tilecore/types"
)

// Overlay stages writes to one slot for the length of a trigger step.
// Reads see the step's own writes first. Commit publishes the batch at
// once; dropping the Overlay discards it.
type Overlay struct {
	base   *Slot
	writes map[string]*types.Scalar
}

// NewOverlay stages writes on top of base.
func NewOverlay(base *Slot) *Overlay {
	return &Overlay{base: base, writes: map[string]*types.Scalar{}}
}

// Get returns the staged value if any, else the committed one.
func (o *Overlay) Get(name string) (types.Scalar, bool) {
	if v, ok := o.writes[name]; ok {
		if v == nil {
			return types.Scalar{}, false
		}
		return *v, true
	}
	return o.base.Get(name)
}

// Set stages v. Names follow the same rules as State.Set.
func (o *Overlay) Set(name string, v types.Scalar) error {
	if name == "" {
		return fmt.Errorf("savestate: empty variable name")
	}
	if err := Validate(v); err != nil {
		return err
	}
	o.writes[name] = &v
	return nil
}

// Delete stages removal of name.
func (o *Overlay) Delete(name string) {
	o.writes[name] = nil
}

// Bool reads a bool guard. Unset reads false.
func (o *Overlay) Bool(name string) bool {
	v, _ := o.Get(name)
	return v.Kind == types.ScalarBool && v.Bool
}

// SetBool stages a bool.
func (o *Overlay) SetBool(name string, b bool) error {
	return o.Set(name, BoolValue(b))
}

// Int reads an int. Unset reads 0.
func (o *Overlay) Int(name string) int64 {
	v, _ := o.Get(name)
	if v.Kind != types.ScalarInt {
		return 0
	}
	return v.Int
}

// SetInt stages an int.
func (o *Overlay) SetInt(name string, n int64) error {
	return o.Set(name, IntValue(n))
}

// Text reads a string. Unset reads "".
func (o *Overlay) Text(name string) string {
	v, _ := o.Get(name)
	if v.Kind != types.ScalarString {
		return ""
	}
	return v.String
}

// SetText stages a string.
func (o *Overlay) SetText(name, s string) error {
	return o.Set(name, StringValue(s))
}

// Changes returns the names with staged writes, sorted.
func (o *Overlay) Changes() []string {
	names := make([]string, 0, len(o.writes))
	for k := range o.writes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Commit publishes every staged write and clears the overlay.
func (o *Overlay) Commit() {
	if len(o.writes) == 0 {
		return
	}
	o.base.state.apply(o.base.name, o.writes)
	o.writes = map[string]*types.Scalar{}
}

// Discard drops every staged write.
func (o *Overlay) Discard() {
	o.writes = map[string]*types.Scalar{}
}
