package model

import (
	"fmt"
	"sort"
	"strings"
)

// Registry looks up descriptors by model name or table name, case-insensitively.
type Registry struct {
	byKey map[string]*Descriptor
	names []string
}

func NewRegistry(descs ...*Descriptor) (*Registry, error) {
	r := &Registry{byKey: map[string]*Descriptor{}}
	for _, d := range descs {
		if err := r.add(d); err != nil {
			return nil, err
		}
	}
	sort.Strings(r.names)
	return r, nil
}

func (r *Registry) add(d *Descriptor) error {
	m := d.Model()
	if m == nil || m.Name == "" || m.Table == "" {
		return fmt.Errorf("model: descriptor needs name and table")
	}
	for _, k := range []string{strings.ToLower(m.Name), strings.ToLower(m.Table)} {
		if prev, ok := r.byKey[k]; ok && prev != d {
			return fmt.Errorf("model: duplicate model key %q", k)
		}
		r.byKey[k] = d
	}
	r.names = append(r.names, m.Name)
	return nil
}

func (r *Registry) Lookup(key string) (*Descriptor, bool) {
	d, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	return d, ok
}

// All returns descriptors ordered by model name.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.byKey[strings.ToLower(n)])
	}
	return out
}
