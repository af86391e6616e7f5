package topology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/topoload/internal/importer"
	"github.com/roach88/topoload/internal/inventory"
)

// DefaultCableTypes maps "{type}-{cable_size}" of a cable feature to the
// inventory's cable master type. An empty value marks a known type with no
// master.
var DefaultCableTypes = map[string]string{
	"eli-12":  "FO-12",
	"ttk-12":  "FO-12",
	"eli-24":  "FO-24",
	"ttk-24":  "FO-24",
	"eli-48":  "FO-48",
	"ttk-48":  "FO-48",
	"eli-96":  "FO-96",
	"ttk-96":  "FO-96",
	"eli-144": "FO-144",
	"ttk-144": "FO-144",
	"drop-4":  "FO-4",
	"ttk-576": "",
}

// CableFeature is the routing-relevant part of one cable feature.
type CableFeature struct {
	Handle        string                         `json:"handle"`
	Type          string                         `json:"type"`
	Size          int                            `json:"cable_size"`
	Start         inventory.EndpointDescriptor   `json:"start"`
	End           inventory.EndpointDescriptor   `json:"end"`
	Intersections []inventory.EndpointDescriptor `json:"intersections"`
}

// TypeKey is the "{type}-{cable_size}" lookup key.
func (f CableFeature) TypeKey() string {
	return fmt.Sprintf("%s-%d", f.Type, f.Size)
}

// ParseCable extracts a CableFeature from a candidate's properties. Missing
// or malformed fields are a MISSING_ATTRIBUTE error listing all of them.
func ParseCable(c inventory.Candidate) (CableFeature, error) {
	var raw struct {
		Handle        string                         `json:"handle"`
		Type          string                         `json:"type"`
		Size          json.Number                    `json:"cable_size"`
		Start         *inventory.EndpointDescriptor  `json:"start"`
		End           *inventory.EndpointDescriptor  `json:"end"`
		Intersections []inventory.EndpointDescriptor `json:"intersections"`
	}
	problems := map[string]string{}

	data, err := json.Marshal(c.Attrs)
	if err != nil {
		return CableFeature{}, fmt.Errorf("encode cable properties: %w", err)
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		problems["properties"] = err.Error()
	}

	f := CableFeature{
		Handle:        inventory.NormalizeKey(raw.Handle),
		Type:          strings.TrimSpace(raw.Type),
		Intersections: raw.Intersections,
	}
	if f.Handle == "" {
		problems["handle"] = "required"
	}
	if f.Type == "" {
		problems["type"] = "required"
	}
	if size, err := strconv.Atoi(raw.Size.String()); err != nil || size <= 0 {
		problems["cable_size"] = "positive integer required"
	} else {
		f.Size = size
	}
	if raw.Start == nil || !raw.Start.Valid() {
		problems["start"] = "building or node endpoint required"
	} else {
		f.Start = *raw.Start
	}
	if raw.End == nil || !raw.End.Valid() {
		problems["end"] = "building or node endpoint required"
	} else {
		f.End = *raw.End
	}
	for i, wp := range f.Intersections {
		if !wp.Valid() {
			problems[fmt.Sprintf("intersections[%d]", i)] = "building or node endpoint required"
		}
	}

	if len(problems) > 0 {
		return CableFeature{}, inventory.NewMissingAttributeError(inventory.KindDataCable, f.Handle, problems)
	}
	return f, nil
}

// CableLoader walks a cable feature into one or more connected sections.
type CableLoader struct {
	connector *Connector
	cache     *Cache
	types     map[string]string
	logger    *slog.Logger
}

// NewCableLoader creates a loader. A nil types map uses DefaultCableTypes.
func NewCableLoader(connector *Connector, cache *Cache, types map[string]string, logger *slog.Logger) *CableLoader {
	if types == nil {
		types = DefaultCableTypes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CableLoader{connector: connector, cache: cache, types: types, logger: logger}
}

// CableTypeElid maps a feature's type and size to its cable master elid.
func (l *CableLoader) CableTypeElid(f CableFeature) (string, error) {
	master, known := l.types[f.TypeKey()]
	if !known || master == "" {
		return "", inventory.NewMissingAttributeError(inventory.KindDataCable, f.Handle,
			map[string]string{"type": fmt.Sprintf("no cable master type for %q", f.TypeKey())})
	}
	elid, ok := l.cache.CableMasterElid(master)
	if !ok {
		return "", inventory.NewMissingAttributeError(inventory.KindDataCable, f.Handle,
			map[string]string{"type": fmt.Sprintf("cable master %q not in catalog", master)})
	}
	return elid, nil
}

// Load connects a cable feature section by section.
//
// The intersections are walked in order. Each one is tried as the end of the
// current section; when that connect succeeds the section is closed, the
// counter advances and the intersection becomes the next start. When the
// intersection has no usable endpoint it becomes an intermediate waypoint of
// the next attempt instead. A final section always runs to the cable end.
//
// Errors other than an unusable endpoint stop the walk. Sections already
// created stay in place and are returned alongside the error.
func (l *CableLoader) Load(ctx context.Context, f CableFeature) ([]Section, error) {
	typeElid, err := l.CableTypeElid(f)
	if err != nil {
		return nil, err
	}

	var sections []Section
	current := f.Start
	var via []inventory.EndpointDescriptor
	next := 1

	for _, stop := range f.Intersections {
		sec, err := l.connector.Connect(ctx, SectionRequest{
			Handle: f.Handle, Section: next,
			Start: current, End: stop, Via: via,
			CableTypeElid: typeElid, Wires: f.Size,
		})
		if err != nil {
			if !notSectionEnd(err) {
				return sections, err
			}
			l.logger.Debug("intersection is not a section end",
				"cable", f.Handle, "waypoint", stop.String(), "reason", err)
			via = append(via, stop)
			continue
		}
		sections = append(sections, sec)
		current = stop
		via = nil
		next++
	}

	sec, err := l.connector.Connect(ctx, SectionRequest{
		Handle: f.Handle, Section: next,
		Start: current, End: f.End, Via: via,
		CableTypeElid: typeElid, Wires: f.Size,
	})
	if err != nil {
		return sections, err
	}
	return append(sections, sec), nil
}

// notSectionEnd reports whether a failed attempt only shows that the stop
// cannot close the current section: the stop has no connectable device, or
// it and the current start are both junction boxes or both plain devices.
func notSectionEnd(err error) bool {
	return errors.Is(err, ErrJunctionBoxPairing) || inventory.IsEndpointNotFound(err)
}

// CableHandle strips the "-{section}" suffix from a stored cable id.
func CableHandle(id string) string {
	id = inventory.NormalizeKey(id)
	i := strings.LastIndexByte(id, '-')
	if i <= 0 || i == len(id)-1 {
		return id
	}
	if _, err := strconv.Atoi(id[i+1:]); err != nil {
		return id
	}
	return id[:i]
}

// CableRecordKey keys a stored data cable by its handle.
func CableRecordKey(f importer.Fields) (string, error) {
	if h := CableHandle(f.String("id")); h != "" {
		return h, nil
	}
	return "", inventory.NewIdentityError(inventory.KindDataCable, "id")
}

// CableCandidateKey keys a cable feature by its handle.
var CableCandidateKey = importer.KeyFields(inventory.KindDataCable, "handle")

// CableEntity adapts cable loading to inventory.Entity, so the cable layer
// goes through the same reconciler as every other layer.
//
// Create checks for any stored cable named "{handle}*" first and reports it
// as already existing; otherwise it runs the CableLoader. Delete removes
// every section of the handle together with their stored routes.
type CableEntity struct {
	inventory.Entity // reads
	cables           CableService
	routes           RoutePersister
	loader           *CableLoader
	logger           *slog.Logger
}

// NewCableEntity wraps the dataCable read capability with connect-backed
// creation and route-aware deletion.
func NewCableEntity(reads inventory.Entity, cables CableService, routes RoutePersister, loader *CableLoader, logger *slog.Logger) *CableEntity {
	if logger == nil {
		logger = slog.Default()
	}
	return &CableEntity{Entity: reads, cables: cables, routes: routes, loader: loader, logger: logger}
}

// Kind implements inventory.Entity.
func (e *CableEntity) Kind() inventory.Kind { return inventory.KindDataCable }

// Create implements inventory.Entity.
func (e *CableEntity) Create(ctx context.Context, c inventory.Candidate) (inventory.CreateResult, error) {
	f, err := ParseCable(c)
	if err != nil {
		return inventory.CreateResult{}, err
	}
	if _, err := e.loader.CableTypeElid(f); err != nil {
		return inventory.CreateResult{}, err
	}

	existing, err := e.cables.FindCables(ctx, f.Handle+"*")
	if err != nil {
		return inventory.CreateResult{}, fmt.Errorf("look up cable %s: %w", f.Handle, err)
	}
	if owned := sectionsOf(f.Handle, existing); len(owned) > 0 {
		return inventory.CreateResult{
			AlreadyExists: true,
			Elid:          owned[0].Elid,
			Message:       fmt.Sprintf("cable %s already has %d section(s)", f.Handle, len(owned)),
		}, nil
	}

	sections, err := e.loader.Load(ctx, f)
	if err != nil {
		if len(sections) > 0 {
			e.logger.Warn("cable partially connected",
				"cable", f.Handle, "sections", len(sections), "error", err)
			return inventory.CreateResult{}, fmt.Errorf("cable %s stopped after %d section(s): %w", f.Handle, len(sections), err)
		}
		return inventory.CreateResult{}, err
	}
	return inventory.CreateResult{Success: true, Elid: sections[0].Elid}, nil
}

// Delete implements inventory.Entity. elid is any section of the cable.
func (e *CableEntity) Delete(ctx context.Context, elid string) error {
	rec, err := e.GetByElid(ctx, elid)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("delete cable %s: not found", elid)
	}
	handle := CableHandle(rec.String("id"))
	found, err := e.cables.FindCables(ctx, handle+"*")
	if err != nil {
		return fmt.Errorf("look up cable %s: %w", handle, err)
	}

	var errs []error
	for _, sec := range sectionsOf(handle, found) {
		if err := e.cables.DeleteCable(ctx, sec.Elid); err != nil {
			errs = append(errs, err)
			continue
		}
		n, err := e.routes.DeleteRoute(ctx, sec.Elid)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete route of %s: %w", sec.Elid, err))
			continue
		}
		e.logger.Info("deleted cable section", "cable", sec.String("id"), "elid", sec.Elid, "hops", n)
	}
	return errors.Join(errs...)
}

// sectionsOf keeps the records whose id belongs to handle; a "{handle}*"
// query also matches longer handles sharing the prefix.
func sectionsOf(handle string, recs []inventory.Record) []inventory.Record {
	var out []inventory.Record
	for _, r := range recs {
		if CableHandle(r.String("id")) == handle {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].String("id") < out[j].String("id") })
	return out
}
