package metrics

import (
	"errors"
	"fmt"
)

// ErrDuplicateTag is returned when two accumulators are registered under
// the same tag. This is a startup configuration error.
var ErrDuplicateTag = errors.New("duplicate metric tag")

// Registry holds one accumulator per known tag, preserving registration
// order for snapshot assembly. It is populated at startup and read-only
// afterwards, so lookups need no locking.
type Registry struct {
	order []string
	byTag map[string]*Accumulator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTag: make(map[string]*Accumulator)}
}

// Register adds an accumulator for the given tag.
func (r *Registry) Register(info TagInfo) error {
	if info.Tag == "" {
		return fmt.Errorf("metric tag cannot be empty")
	}
	if _, ok := r.byTag[info.Tag]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTag, info.Tag)
	}
	r.byTag[info.Tag] = NewAccumulator(info)
	r.order = append(r.order, info.Tag)
	return nil
}

// Lookup returns the accumulator for a tag, or nil if none is registered.
func (r *Registry) Lookup(tag string) *Accumulator {
	return r.byTag[tag]
}

// Len returns the number of registered accumulators.
func (r *Registry) Len() int { return len(r.order) }

// Summarize produces one Result per accumulator in registration order.
func (r *Registry) Summarize() []Result {
	results := make([]Result, 0, len(r.order))
	for _, tag := range r.order {
		results = append(results, r.byTag[tag].Summarize())
	}
	return results
}
