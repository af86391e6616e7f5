package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/topoload/internal/inventory"
)

// Call is one mutating request seen by FakeInventory.
type Call struct {
	Op   string // create, delete, connect, update
	Kind inventory.Kind
	Elid string
	Desc string
}

// FakeInventory is an in-memory inventory system. It serves every capability
// the importer and topology packages consume and records each mutating call
// so tests can assert on what was (not) sent.
//
// Linked relations of created candidates are stored as "{name}Elid"
// attributes, so a building linked to campus C gets campusElid=C.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeInventory struct {
	mu      sync.Mutex
	records map[inventory.Kind][]inventory.Record
	seq     int
	calls   []Call

	createFail map[inventory.Kind]map[string]error
	rejects    map[inventory.Kind]map[string]string
	conflicts  map[inventory.Kind]map[string]bool
	deleteFail map[string]error
	queryFail  map[inventory.Kind]error
	connectErr error
	updateErr  error
}

// NewFakeInventory returns an empty inventory.
func NewFakeInventory() *FakeInventory {
	return &FakeInventory{
		records:    map[inventory.Kind][]inventory.Record{},
		createFail: map[inventory.Kind]map[string]error{},
		rejects:    map[inventory.Kind]map[string]string{},
		conflicts:  map[inventory.Kind]map[string]bool{},
		deleteFail: map[string]error{},
		queryFail:  map[inventory.Kind]error{},
	}
}

// Seed stores a record directly, without recording a call. A missing elid
// is assigned. Returns the elid.
func (f *FakeInventory) Seed(kind inventory.Kind, attrs map[string]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(kind, attrs)
}

// NextElid is the elid the next stored record of kind will be assigned.
func (f *FakeInventory) NextElid(kind inventory.Kind) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("%s-%03d", kind, f.seq+1)
}

func (f *FakeInventory) insert(kind inventory.Kind, attrs map[string]any) string {
	copied := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		copied[k] = v
	}
	if s, _ := copied["elid"].(string); s == "" {
		f.seq++
		copied["elid"] = fmt.Sprintf("%s-%03d", kind, f.seq)
	}
	rec := inventory.NewRecord(copied)
	f.records[kind] = append(f.records[kind], rec)
	return rec.Elid
}

// FailCreate makes create calls for candidates whose Describe() contains
// match return err.
func (f *FakeInventory) FailCreate(kind inventory.Kind, match string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFail[kind] == nil {
		f.createFail[kind] = map[string]error{}
	}
	f.createFail[kind][match] = err
}

// RejectCreate makes matching create calls come back unsuccessful with message.
func (f *FakeInventory) RejectCreate(kind inventory.Kind, match, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejects[kind] == nil {
		f.rejects[kind] = map[string]string{}
	}
	f.rejects[kind][match] = message
}

// ConflictOnCreate makes matching create calls report an existing record.
func (f *FakeInventory) ConflictOnCreate(kind inventory.Kind, match string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts[kind] == nil {
		f.conflicts[kind] = map[string]bool{}
	}
	f.conflicts[kind][match] = true
}

// FailDelete makes deleting elid return err.
func (f *FakeInventory) FailDelete(elid string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteFail[elid] = err
}

// FailQuery makes every read of kind return err.
func (f *FakeInventory) FailQuery(kind inventory.Kind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryFail[kind] = err
}

// FailConnect makes every connect call return err.
func (f *FakeInventory) FailConnect(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// FailUpdate makes every cable update return err. A nil err clears it.
func (f *FakeInventory) FailUpdate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateErr = err
}

// Calls returns the recorded mutating calls in order.
func (f *FakeInventory) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount counts recorded calls of op, optionally restricted to kind.
func (f *FakeInventory) CallCount(op string, kind inventory.Kind) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op && (kind == "" || c.Kind == kind) {
			n++
		}
	}
	return n
}

// Records returns the stored records of kind in insertion order.
func (f *FakeInventory) Records(kind inventory.Kind) []inventory.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]inventory.Record, len(f.records[kind]))
	copy(out, f.records[kind])
	return out
}

func (f *FakeInventory) record(c Call) {
	f.calls = append(f.calls, c)
}

func (f *FakeInventory) query(kind inventory.Kind, q inventory.Query) ([]inventory.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.queryFail[kind]; err != nil {
		return nil, err
	}
	var out []inventory.Record
	for _, rec := range f.records[kind] {
		if q.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *FakeInventory) remove(kind inventory.Kind, elid string) bool {
	recs := f.records[kind]
	for i, rec := range recs {
		if rec.Elid == elid {
			f.records[kind] = append(recs[:i:i], recs[i+1:]...)
			return true
		}
	}
	return false
}

// Entity returns the capability for one entity type.
func (f *FakeInventory) Entity(kind inventory.Kind) inventory.Entity {
	return &fakeEntity{f: f, kind: kind}
}

type fakeEntity struct {
	f    *FakeInventory
	kind inventory.Kind
}

func (e *fakeEntity) Kind() inventory.Kind { return e.kind }

func (e *fakeEntity) Create(ctx context.Context, c inventory.Candidate) (inventory.CreateResult, error) {
	if err := ctx.Err(); err != nil {
		return inventory.CreateResult{}, err
	}
	f := e.f
	f.mu.Lock()
	defer f.mu.Unlock()

	desc := c.Describe()
	f.record(Call{Op: "create", Kind: e.kind, Desc: desc})

	if err := matchFirst(f.createFail[e.kind], desc); err != nil {
		return inventory.CreateResult{}, err
	}
	if msg, ok := matchString(f.rejects[e.kind], desc); ok {
		return inventory.CreateResult{Message: msg}, nil
	}
	if _, ok := matchString(boolsToStrings(f.conflicts[e.kind]), desc); ok {
		return inventory.CreateResult{AlreadyExists: true, Message: desc + " already exists"}, nil
	}

	attrs := make(map[string]any, len(c.Attrs)+len(c.Links))
	for k, v := range c.Attrs {
		attrs[k] = v
	}
	for name, elid := range c.Links {
		attrs[linkAttr(name)] = elid
	}
	delete(attrs, "elid")
	elid := f.insert(e.kind, attrs)
	return inventory.CreateResult{Success: true, Elid: elid}, nil
}

func (e *fakeEntity) GetAll(ctx context.Context) ([]inventory.Record, error) {
	return e.f.query(e.kind, inventory.Query{})
}

func (e *fakeEntity) GetByQuery(ctx context.Context, q inventory.Query) ([]inventory.Record, error) {
	return e.f.query(e.kind, q)
}

func (e *fakeEntity) GetByElid(ctx context.Context, elid string) (*inventory.Record, error) {
	recs, err := e.f.query(e.kind, inventory.Query{}.Equals("elid", elid))
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, nil
	case 1:
		return &recs[0], nil
	}
	return nil, inventory.NewDataIntegrityError(e.kind, elid, len(recs), "record per elid")
}

func (e *fakeEntity) Delete(ctx context.Context, elid string) error {
	f := e.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Op: "delete", Kind: e.kind, Elid: elid})
	if err := f.deleteFail[elid]; err != nil {
		return err
	}
	if !f.remove(e.kind, elid) {
		return fmt.Errorf("delete %s %s: not found", e.kind, elid)
	}
	return nil
}

// Catalog returns every record of kind.
func (f *FakeInventory) Catalog(ctx context.Context, kind inventory.Kind) ([]inventory.Record, error) {
	return f.query(kind, inventory.Query{})
}

// DevicesInNode returns devices whose nodeElid attribute is nodeElid.
func (f *FakeInventory) DevicesInNode(ctx context.Context, nodeElid string) ([]inventory.Record, error) {
	return f.query(inventory.KindDevice, inventory.Query{}.Equals("nodeElid", nodeElid))
}

// DevicesInZone returns devices whose zoneElid attribute is zoneElid.
func (f *FakeInventory) DevicesInZone(ctx context.Context, zoneElid string) ([]inventory.Record, error) {
	return f.query(inventory.KindDevice, inventory.Query{}.Equals("zoneElid", zoneElid))
}

// TraySectionsBetween returns tray sections stored as (from, to).
func (f *FakeInventory) TraySectionsBetween(ctx context.Context, from, to string) ([]inventory.Record, error) {
	q := inventory.Query{}.Equals("fromNodeElid", from).Equals("toNodeElid", to)
	return f.query(inventory.KindTraySection, q)
}

// Connect creates one data cable between the box and the device.
func (f *FakeInventory) Connect(ctx context.Context, req inventory.ConnectRequest) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Op: "connect", Kind: req.Entity(), Elid: req.JunctionBoxElid, Desc: req.DeviceElid})
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	elid := f.insert(inventory.KindDataCable, map[string]any{
		"junctionBoxElid": req.JunctionBoxElid,
		"deviceElid":      req.DeviceElid,
		"cableTypeElid":   req.CableTypeElid,
		"numberOfWires":   req.Wires,
	})
	return []string{elid}, nil
}

// UpdateCable sets a stored cable's id and visibleId.
func (f *FakeInventory) UpdateCable(ctx context.Context, elid, id, visibleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Op: "update", Kind: inventory.KindDataCable, Elid: elid, Desc: id})
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, rec := range f.records[inventory.KindDataCable] {
		if rec.Elid == elid {
			rec.Attrs["id"] = id
			rec.Attrs["visibleId"] = visibleID
			return nil
		}
	}
	return fmt.Errorf("update data cable %s: not found", elid)
}

// FindCables returns cables whose id matches pattern.
func (f *FakeInventory) FindCables(ctx context.Context, pattern string) ([]inventory.Record, error) {
	return f.query(inventory.KindDataCable, inventory.Query{}.Like("id", pattern))
}

// DeleteCable deletes a data cable.
func (f *FakeInventory) DeleteCable(ctx context.Context, elid string) error {
	return f.Entity(inventory.KindDataCable).Delete(ctx, elid)
}

// linkAttr names the attribute a link is read back as: "Campus" and
// "campus" both become "campusElid".
func linkAttr(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return "elid"
	}
	return string(unicode.ToLower(r)) + name[size:] + "Elid"
}

func matchFirst(m map[string]error, desc string) error {
	for _, k := range sortedKeys(m) {
		if strings.Contains(desc, k) {
			return m[k]
		}
	}
	return nil
}

func matchString(m map[string]string, desc string) (string, bool) {
	for _, k := range sortedKeys(m) {
		if strings.Contains(desc, k) {
			return m[k], true
		}
	}
	return "", false
}

func boolsToStrings(m map[string]bool) map[string]string {
	out := make(map[string]string, len(m))
	for k := range m {
		out[k] = k
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
