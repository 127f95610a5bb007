// Package contacts holds the caregiver registry: display names mapped to
// Discord user ids, fixed for the lifetime of the process.
package contacts

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownName is returned by NameOf for ids that are not registered.
const UnknownName = "unknown"

// Contact is one registry entry.
type Contact struct {
	Name string `json:"name"`
	ID   uint64 `json:"id"`
}

// Registry is an ordered, read-only contact list.
type Registry struct {
	entries []Contact
	byName  map[string]uint64
}

// New validates entries and builds a Registry preserving their order.
func New(entries []Contact) (*Registry, error) {
	r := &Registry{
		entries: make([]Contact, 0, len(entries)),
		byName:  make(map[string]uint64, len(entries)),
	}
	var errs []error
	for i, c := range entries {
		switch {
		case strings.TrimSpace(c.Name) == "":
			errs = append(errs, fmt.Errorf("contact %d: empty name", i))
			continue
		case c.ID == 0:
			errs = append(errs, fmt.Errorf("contact %q: missing id", c.Name))
			continue
		}
		if _, dup := r.byName[c.Name]; dup {
			errs = append(errs, fmt.Errorf("contact %q: duplicate name", c.Name))
			continue
		}
		r.byName[c.Name] = c.ID
		r.entries = append(r.entries, c)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup resolves a display name. Matching is exact and case-sensitive.
func (r *Registry) Lookup(name string) (uint64, bool) {
	if r == nil {
		return 0, false
	}
	id, ok := r.byName[name]
	return id, ok
}

// NameOf returns the first name registered for id, or UnknownName.
func (r *Registry) NameOf(id uint64) string {
	if r == nil {
		return UnknownName
	}
	for _, c := range r.entries {
		if c.ID == id {
			return c.Name
		}
	}
	return UnknownName
}

// Contains reports whether id belongs to any registered contact.
func (r *Registry) Contains(id uint64) bool {
	if r == nil {
		return false
	}
	for _, c := range r.entries {
		if c.ID == id {
			return true
		}
	}
	return false
}

// All returns the contacts in registration order.
func (r *Registry) All() []Contact {
	if r == nil {
		return nil
	}
	return append([]Contact(nil), r.entries...)
}

// Names returns the display names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.entries))
	for _, c := range r.entries {
		out = append(out, c.Name)
	}
	return out
}

// Len returns the number of contacts.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}
