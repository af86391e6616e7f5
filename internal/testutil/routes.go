package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/topoload/internal/inventory"
)

// MemoryRoutes is an in-memory route persister with the same atomicity as
// the SQL store: a cable's hops are written all together or not at all.
type MemoryRoutes struct {
	mu     sync.Mutex
	routes map[string][]inventory.Hop
	fail   error
	writes int
}

// NewMemoryRoutes returns an empty persister.
func NewMemoryRoutes() *MemoryRoutes {
	return &MemoryRoutes{routes: map[string][]inventory.Hop{}}
}

// Fail makes every later PersistRoute return err. A nil err clears it.
func (m *MemoryRoutes) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// PersistRoute stores the hops of one cable.
func (m *MemoryRoutes) PersistRoute(ctx context.Context, cableElid string, hops []inventory.Hop) error {
	if err := inventory.ValidateHops(hops); err != nil {
		return fmt.Errorf("persist route of %s: %w", cableElid, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.routes[cableElid]; ok {
		return fmt.Errorf("persist route of %s: route already stored", cableElid)
	}
	m.routes[cableElid] = append([]inventory.Hop(nil), hops...)
	return nil
}

// DeleteRoute removes a cable's hops.
func (m *MemoryRoutes) DeleteRoute(ctx context.Context, cableElid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.routes[cableElid])
	delete(m.routes, cableElid)
	return int64(n), nil
}

// Route returns the stored hops of a cable.
func (m *MemoryRoutes) Route(cableElid string) []inventory.Hop {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]inventory.Hop(nil), m.routes[cableElid]...)
}

// Len is the number of routed cables.
func (m *MemoryRoutes) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.routes)
}

// Writes counts PersistRoute calls that passed validation.
func (m *MemoryRoutes) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
