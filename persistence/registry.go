// Package persistence keeps the named saves of a running game and mirrors
// them to durable storage.
//
// Subsystems never talk to each other. Each one registers with the Manager
// as a Contributor owning one fragment key; on a save the Manager asks every
// contributor to write its fragment, on a load it asks every contributor to
// read it back. The Manager only routes bytes by key.
package persistence

import (
	"fmt"
	"sort"
	"time"
)

// FragmentMap maps a contributor key to the contributor's opaque bytes.
type FragmentMap map[string][]byte

// Put stores a private copy of data under key, replacing any earlier value.
func (m FragmentMap) Put(key string, data []byte) {
	m[key] = append([]byte(nil), data...)
}

// Get returns the bytes stored under key.
func (m FragmentMap) Get(key string) ([]byte, bool) {
	data, ok := m[key]
	return data, ok
}

// Keys returns the contributor keys present in the map, sorted.
func (m FragmentMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Clone returns a deep copy of the map.
func (m FragmentMap) Clone() FragmentMap {
	c := make(FragmentMap, len(m))
	for k, v := range m {
		c.Put(k, v)
	}

	return c
}

// A SaveRecord is one named save: the fragments of every contributor at the
// time of the last save.
type SaveRecord struct {
	Name       string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Fragments  FragmentMap
}

func (r *SaveRecord) clone() *SaveRecord {
	c := *r
	c.Fragments = r.Fragments.Clone()

	return &c
}

// Registry is the ordered, in-memory collection of saves. It is not safe for
// concurrent use.
type Registry struct {
	records   []*SaveRecord
	nameIndex map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nameIndex: make(map[string]int),
	}
}

// Create appends an empty save record. It fails with ErrDuplicateName if a
// save with the same name exists.
func (r *Registry) Create(name string, now time.Time) (*SaveRecord, error) {
	if _, ok := r.nameIndex[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	rec := &SaveRecord{
		Name:       name,
		CreatedAt:  now,
		ModifiedAt: now,
		Fragments:  make(FragmentMap),
	}

	r.records = append(r.records, rec)
	r.nameIndex[name] = len(r.records) - 1

	return rec, nil
}

// Get returns the save record with the given name.
func (r *Registry) Get(name string) (*SaveRecord, bool) {
	i, ok := r.nameIndex[name]
	if !ok {
		return nil, false
	}

	return r.records[i], true
}

// Fragments exposes the mutable fragment map of the named save.
func (r *Registry) Fragments(name string) (FragmentMap, bool) {
	rec, ok := r.Get(name)
	if !ok {
		return nil, false
	}

	return rec.Fragments, true
}

// Remove deletes the named save, reporting whether it existed.
func (r *Registry) Remove(name string) bool {
	i, ok := r.nameIndex[name]
	if !ok {
		return false
	}

	r.records = append(r.records[:i], r.records[i+1:]...)
	r.reindex()

	return true
}

// ReplaceAll swaps the whole collection for the given records. Records with
// a nil fragment map get an empty one. Later duplicates of a name are
// dropped.
func (r *Registry) ReplaceAll(records []*SaveRecord) {
	fresh := make([]*SaveRecord, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		if seen[rec.Name] {
			continue
		}

		seen[rec.Name] = true

		if rec.Fragments == nil {
			rec.Fragments = make(FragmentMap)
		}

		fresh = append(fresh, rec)
	}

	r.records = fresh
	r.reindex()
}

func (r *Registry) reindex() {
	r.nameIndex = make(map[string]int, len(r.records))
	for i, rec := range r.records {
		r.nameIndex[rec.Name] = i
	}
}

// Records returns the save records in creation order. The slice is shared
// with the registry and must not be modified.
func (r *Registry) Records() []*SaveRecord {
	return r.records
}

// Names returns the save names in creation order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		names = append(names, rec.Name)
	}

	return names
}

// Len returns the number of saves.
func (r *Registry) Len() int {
	return len(r.records)
}
