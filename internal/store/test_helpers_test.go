package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/topoload/internal/ident"
	"github.com/roach88/topoload/internal/inventory"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	defaults := []Option{
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(ident.NewSequenceGenerator("link")),
	}
	s, err := Open(path, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// hops builds a contiguous route over the given tray sections. A leading
// '~' marks the hop as swapped.
func hops(trays ...string) []inventory.Hop {
	out := make([]inventory.Hop, len(trays))
	for i, tr := range trays {
		swapped := len(tr) > 0 && tr[0] == '~'
		if swapped {
			tr = tr[1:]
		}
		out[i] = inventory.Hop{TraySectionElid: tr, Swapped: swapped, Sequence: i + 1}
	}
	return out
}

// constantGenerator always returns the same id, forcing primary key clashes.
type constantGenerator string

func (g constantGenerator) Generate() string { return string(g) }
