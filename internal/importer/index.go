package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/topoload/internal/inventory"
)

// Fields is anything a key can be derived from. Both inventory.Record and
// inventory.Candidate satisfy it.
type Fields interface {
	String(field string) string
}

// KeyFunc derives the identity key of a record or candidate. It returns an
// IDENTITY error when the key would be empty.
type KeyFunc func(Fields) (string, error)

// KeySeparator joins the parts of a composite identity key.
const KeySeparator = " | "

// KeyFields returns a KeyFunc joining the named fields with KeySeparator.
//
// A field name ending in "?" is optional: an empty value keeps its slot in the
// key so that ("A", "") and ("A", "1") stay distinct. Every other field is
// required; any empty required field is an IDENTITY error naming all of them.
// Values are NFC-normalized and trimmed.
func KeyFields(kind inventory.Kind, fields ...string) KeyFunc {
	type part struct {
		name     string
		optional bool
	}
	parts := make([]part, len(fields))
	for i, f := range fields {
		parts[i] = part{name: strings.TrimSuffix(f, "?"), optional: strings.HasSuffix(f, "?")}
	}

	return func(f Fields) (string, error) {
		if len(parts) == 0 {
			return "", inventory.NewIdentityError(kind, "<no key fields>")
		}
		values := make([]string, len(parts))
		var missing []string
		filled := 0
		for i, p := range parts {
			values[i] = inventory.NormalizeKey(f.String(p.name))
			switch {
			case values[i] != "":
				filled++
			case !p.optional:
				missing = append(missing, p.name)
			}
		}
		if len(missing) > 0 {
			return "", inventory.NewIdentityError(kind, missing...)
		}
		if filled == 0 {
			return "", inventory.NewIdentityError(kind, fields...)
		}
		return strings.Join(values, KeySeparator), nil
	}
}

// Index is the snapshot of stored records of one entity type, keyed by
// identity key. It is built once per layer and never refreshed.
//
// Thread-safety: read-only after BuildIndex returns.
type Index struct {
	kind    inventory.Kind
	byKey   map[string]inventory.Record
	keys    []string
	unkeyed int
	dupes   int
}

// BuildIndex reads every stored record of the entity and keys it.
//
// Stored records without a derivable key are counted but not indexed. When
// stored data already holds two records with one key, the first one read is
// kept. Any read failure is returned: there is no safe partial index.
func BuildIndex(ctx context.Context, e inventory.Entity, key KeyFunc) (*Index, error) {
	records, err := e.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("build %s index: %w", e.Kind(), err)
	}
	return NewIndex(e.Kind(), records, key), nil
}

// NewIndex keys an already fetched record set.
func NewIndex(kind inventory.Kind, records []inventory.Record, key KeyFunc) *Index {
	idx := &Index{kind: kind, byKey: make(map[string]inventory.Record, len(records))}
	for _, rec := range records {
		k, err := key(rec)
		if err != nil {
			idx.unkeyed++
			continue
		}
		if _, ok := idx.byKey[k]; ok {
			idx.dupes++
			continue
		}
		idx.byKey[k] = rec
		idx.keys = append(idx.keys, k)
	}
	sort.Strings(idx.keys)
	return idx
}

// Kind is the indexed entity type.
func (i *Index) Kind() inventory.Kind { return i.kind }

// Lookup returns the stored record with the key.
func (i *Index) Lookup(key string) (inventory.Record, bool) {
	rec, ok := i.byKey[key]
	return rec, ok
}

// Len is the number of indexed keys.
func (i *Index) Len() int { return len(i.byKey) }

// Keys returns the indexed keys in sorted order.
func (i *Index) Keys() []string {
	out := make([]string, len(i.keys))
	copy(out, i.keys)
	return out
}

// Unkeyed is the number of stored records without a derivable key.
func (i *Index) Unkeyed() int { return i.unkeyed }

// StoredDuplicates is the number of stored records shadowed by an earlier
// record with the same key.
func (i *Index) StoredDuplicates() int { return i.dupes }
