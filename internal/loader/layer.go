package loader

import (
	"context"
	"fmt"

	"github.com/roach88/topoload/internal/importer"
	"github.com/roach88/topoload/internal/inventory"
)

// Layer is one step of an import run: the candidates collected under Name
// reconciled against one entity.
type Layer struct {
	Name      string
	Kind      inventory.Kind
	Key       importer.KeyFunc // candidate identity
	StoredKey importer.KeyFunc // identity of existing records
	Rules     map[string]string
	Relations []Relation

	// Open returns the entity to reconcile against. It is called when the
	// layer starts, after every earlier layer has finished, so it may read
	// what those layers created.
	Open func(ctx context.Context) (inventory.Entity, error)
}

// Relation fills a link of every candidate from the records of an earlier
// layer. Key computes the target's identity key from the candidate.
type Relation struct {
	Link  string
	Layer string
	Key   importer.KeyFunc
}

// StaticLayer is a Layer over a fixed entity.
func StaticLayer(name string, e inventory.Entity, key, storedKey importer.KeyFunc) Layer {
	if storedKey == nil {
		storedKey = key
	}
	return Layer{
		Name:      name,
		Kind:      e.Kind(),
		Key:       key,
		StoredKey: storedKey,
		Open:      func(context.Context) (inventory.Entity, error) { return e, nil },
	}
}

type boundRelation struct {
	Relation
	index *importer.Index
}

// linkingEntity resolves relations before delegating Create. A relation
// that cannot be resolved fails the candidate with MISSING_ATTRIBUTE and no
// remote call is made.
type linkingEntity struct {
	inventory.Entity
	relations []boundRelation
}

func (e *linkingEntity) Create(ctx context.Context, c inventory.Candidate) (inventory.CreateResult, error) {
	missing := map[string]string{}
	for _, r := range e.relations {
		key, err := r.Key(c)
		if err != nil {
			missing[inventory.LinkField(r.Link)] = err.Error()
			continue
		}
		target, ok := r.index.Lookup(key)
		if !ok {
			missing[inventory.LinkField(r.Link)] = fmt.Sprintf("no %s with key %q", r.Layer, key)
			continue
		}
		c = c.WithLink(r.Link, target.Elid)
	}
	if len(missing) > 0 {
		return inventory.CreateResult{}, inventory.NewMissingAttributeError(c.Kind, c.Describe(), missing)
	}
	return e.Entity.Create(ctx, c)
}
