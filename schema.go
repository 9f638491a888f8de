package cfgpack

import (
	"fmt"
	"sort"
)

// Schema is the immutable, caller-owned representation of a parsed
// schema: a name, a version, and a flat table of entries sorted
// ascending by id.
type Schema struct {
	MapName string
	Version uint32
	Entries []Entry
}

// Sizing is the exact buffer-size tuple a Measure pass returns, letting
// a caller allocate Context buffers without any intermediate copy.
type Sizing struct {
	EntryCount  int
	StrCount    int
	FstrCount   int
	StrPoolSize int
}

// add counts one more entry of type t, growing the string counts and
// pool size when t is a string type.
func (s *Sizing) add(t T) {
	s.EntryCount++
	switch t {
	case TStr:
		s.StrCount++
		s.StrPoolSize += StrMax + 1
	case TFstr:
		s.FstrCount++
		s.StrPoolSize += FstrMax + 1
	}
}

// ByID returns the entry with the given id via binary search over the
// sorted entry table, and its index, or ok=false if absent.
func (s *Schema) ByID(id uint16) (e *Entry, index int, ok bool) {
	entries := s.Entries
	i := sort.Search(len(entries), func(i int) bool { return entries[i].ID >= id })
	if i < len(entries) && entries[i].ID == id {
		return &entries[i], i, true
	}
	return nil, -1, false
}

// ByName returns the entry with the given short name via linear scan —
// acceptable given the expected small N and short names, per the
// runtime-context lookup design.
func (s *Schema) ByName(name string) (e *Entry, index int, ok bool) {
	for i := range s.Entries {
		if s.Entries[i].Name == name {
			return &s.Entries[i], i, true
		}
	}
	return nil, -1, false
}

// Sizing computes the exact buffer sizes required by Context.Init for
// this schema.
func (s *Schema) Sizing() Sizing {
	var sz Sizing
	for _, e := range s.Entries {
		sz.add(e.Type)
	}
	return sz
}

// validateEntries checks the entry-table invariants common to every front
// end: id range, id/name uniqueness, name length, entries sorted
// ascending by id (callers sort before calling this).
func validateEntries(entries []Entry, maxEntries int) error {
	if len(entries) > maxEntries {
		return fmt.Errorf("%w: %d entries exceeds cap of %d", ErrBounds, len(entries), maxEntries)
	}
	seenID := make(map[uint16]struct{}, len(entries))
	seenName := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.ID == 0 {
			return fmt.Errorf("%w: entry id 0 is reserved for the schema name", ErrReservedIndex)
		}
		if e.ID > MaxID {
			return fmt.Errorf("%w: id %d exceeds max %d", ErrBounds, e.ID, MaxID)
		}
		if len(e.Name) < 1 || len(e.Name) > NameMax {
			return fmt.Errorf("%w: name %q length %d outside [1,%d]", ErrBounds, e.Name, len(e.Name), NameMax)
		}
		if _, dup := seenID[e.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrDuplicate, e.ID)
		}
		seenID[e.ID] = struct{}{}
		if _, dup := seenName[e.Name]; dup {
			return fmt.Errorf("%w: duplicate name %q", ErrDuplicate, e.Name)
		}
		seenName[e.Name] = struct{}{}
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID >= entries[i].ID {
			return fmt.Errorf("%w: entries not strictly ascending at index %d", ErrBounds, i)
		}
	}
	return nil
}

// newSchema finalizes a schema from parsed (name, version, entries):
// sorts entries and validates invariants. The string pool layout itself
// is computed separately by stringPoolOffsets, which both schema front
// ends and Context.Init call independently against the finished entry
// table.
func newSchema(mapName string, version uint32, entries []Entry, maxEntries int) (*Schema, error) {
	if len(mapName) < 1 || len(mapName) > MapNameMax {
		return nil, fmt.Errorf("%w: map_name length %d outside [1,%d]", ErrBounds, len(mapName), MapNameMax)
	}
	sortEntries(entries)
	if err := validateEntries(entries, maxEntries); err != nil {
		return nil, err
	}
	return &Schema{
		MapName: mapName,
		Version: version,
		Entries: entries,
	}, nil
}
