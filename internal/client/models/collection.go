package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tallysync/internal/common"
)

// CollectionSpec describes one configured collection.
type CollectionSpec struct {
	Name     string   `json:"name" yaml:"name"`
	Endpoint string   `json:"endpoint" yaml:"endpoint"`
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`
}

// CollectionSet is the closed, ordered set of collections known to the
// process. It is built once at startup and never changes.
type CollectionSet struct {
	specs []CollectionSpec
	index map[string]int
}

// NewCollectionSet validates specs and builds the set. Names must be non-empty
// and unique.
func NewCollectionSet(specs []CollectionSpec) (*CollectionSet, error) {
	cs := &CollectionSet{index: make(map[string]int, len(specs))}
	for _, s := range specs {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: collection with empty name", common.ErrConfig)
		}
		if _, dup := cs.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate collection %q", common.ErrConfig, name)
		}
		s.Name = name
		cs.index[name] = len(cs.specs)
		cs.specs = append(cs.specs, s)
	}
	return cs, nil
}

// Lookup returns the spec for name or common.ErrUnknownCollection.
func (cs *CollectionSet) Lookup(name string) (CollectionSpec, error) {
	i, ok := cs.index[name]
	if !ok {
		return CollectionSpec{}, fmt.Errorf("%w: %q", common.ErrUnknownCollection, name)
	}
	return cs.specs[i], nil
}

// Has reports whether name is a configured collection.
func (cs *CollectionSet) Has(name string) bool {
	_, ok := cs.index[name]
	return ok
}

// Specs returns the collections in configuration order.
func (cs *CollectionSet) Specs() []CollectionSpec {
	out := make([]CollectionSpec, len(cs.specs))
	copy(out, cs.specs)
	return out
}

// Names returns the collection names in configuration order.
func (cs *CollectionSet) Names() []string {
	out := make([]string, len(cs.specs))
	for i, s := range cs.specs {
		out[i] = s.Name
	}
	return out
}

// Validate checks that fields carries every value the collection requires.
func (s CollectionSpec) Validate(fields map[string]any) error {
	var missing []string
	for _, k := range s.Required {
		v, ok := fields[k]
		if !ok || v == nil || v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s requires %s", common.ErrValidation, s.Name, strings.Join(missing, ", "))
	}
	return nil
}
