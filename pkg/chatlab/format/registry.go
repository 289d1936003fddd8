// Package format implements the format registry and sniffer: a table of
// descriptors plus a pure, bounded, side-effect-free Detect function.
package format

import (
	"regexp"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// Signature is the set of conditions a format's descriptor must satisfy
// against a bounded prefix of the candidate file.
type Signature struct {
	// Patterns must each match at least once in the prefix.
	Patterns []*regexp.Regexp
	// RequiredFields are JSON top-level key names that must appear as
	// quoted keys in the prefix.
	RequiredFields []string
}

// Descriptor is one registered format.
type Descriptor struct {
	ID         string
	Name       string
	Platform   model.Platform
	Priority   int // lower = preferred
	Extensions []string
	Signature  Signature
}

// Registry holds descriptors in priority order.
type Registry struct {
	descriptors []Descriptor
}

// NewRegistry builds a registry from the given descriptors, sorted by
// ascending Priority (stable for equal priorities).
func NewRegistry(descriptors ...Descriptor) *Registry {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	// simple stable insertion sort: the descriptor count is always small
	// (one per supported format), so this is clearer than importing sort
	// for a handful of elements.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return &Registry{descriptors: out}
}

// Descriptors returns the registered descriptors in priority order.
func (r *Registry) Descriptors() []Descriptor {
	return r.descriptors
}

// ByID looks up a descriptor by its stable id.
func (r *Registry) ByID(id string) (Descriptor, bool) {
	for _, d := range r.descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}
