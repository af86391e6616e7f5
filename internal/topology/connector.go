package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/topoload/internal/inventory"
)

// CableService issues cable mutations against the inventory system.
type CableService interface {
	Connect(ctx context.Context, req inventory.ConnectRequest) ([]string, error)
	UpdateCable(ctx context.Context, elid, id, visibleID string) error
	FindCables(ctx context.Context, pattern string) ([]inventory.Record, error)
	DeleteCable(ctx context.Context, elid string) error
}

// RoutePersister stores a cable's hops. PersistRoute is atomic: on error no
// hop of the cable is stored.
type RoutePersister interface {
	PersistRoute(ctx context.Context, cableElid string, hops []inventory.Hop) error
	DeleteRoute(ctx context.Context, cableElid string) (int64, error)
}

// SectionRequest describes one connect attempt: a cable section from Start
// to End through the Via waypoints.
type SectionRequest struct {
	Handle        string
	Section       int
	Start         inventory.EndpointDescriptor
	End           inventory.EndpointDescriptor
	Via           []inventory.EndpointDescriptor
	CableTypeElid string
	Wires         int
}

// Waypoints returns start, via and end in cable order.
func (r SectionRequest) Waypoints() []inventory.EndpointDescriptor {
	wps := make([]inventory.EndpointDescriptor, 0, len(r.Via)+2)
	wps = append(wps, r.Start)
	wps = append(wps, r.Via...)
	return append(wps, r.End)
}

// Name is the visible id of the section's cable.
func (r SectionRequest) Name() string {
	return SectionName(r.Handle, r.Section)
}

// SectionName renders "{handle}-{section}".
func SectionName(handle string, section int) string {
	return fmt.Sprintf("%s-%d", handle, section)
}

// Section is a connected and routed cable section.
type Section struct {
	Index int             `json:"index" yaml:"index"`
	Name  string          `json:"name" yaml:"name"`
	Elid  string          `json:"elid" yaml:"elid"`
	Hops  []inventory.Hop `json:"hops" yaml:"hops"`
}

// Connector ties endpoint resolution, routing, the connect call, route
// persistence and the rename together for one cable section.
type Connector struct {
	resolver *Resolver
	router   *Router
	cables   CableService
	routes   RoutePersister
	logger   *slog.Logger
}

// NewConnector creates a connector.
func NewConnector(resolver *Resolver, router *Router, cables CableService, routes RoutePersister, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{resolver: resolver, router: router, cables: cables, routes: routes, logger: logger}
}

// ErrJunctionBoxPairing marks a section whose ends both resolved but are
// both junction boxes or both plain devices.
var ErrJunctionBoxPairing = errors.New("a section needs exactly one junction box end")

// Connect creates one cable section.
//
// Order of operations:
//  1. resolve both endpoints
//  2. require exactly one of them to be a junction box
//  3. find the route across all waypoints
//  4. connect from the junction box to the other end
//  5. persist the route for the new cable
//  6. rename the cable to "{handle}-{section}"
//
// Steps 1 to 3 make no remote mutation, so endpoint, topology and route
// failures create nothing. When step 5 or 6 fails the new cable is deleted
// again: an unrenamed cable is invisible to the "{handle}*" lookup and the
// next run would connect the handle a second time.
func (c *Connector) Connect(ctx context.Context, req SectionRequest) (Section, error) {
	start, end, err := c.resolveEnds(ctx, req)
	if err != nil {
		return Section{}, err
	}

	box, far, err := pickJunctionBox(req, start, end)
	if err != nil {
		return Section{}, err
	}

	hops, err := c.router.FindRoute(ctx, req.Waypoints())
	if err != nil {
		return Section{}, err
	}

	created, err := c.cables.Connect(ctx, inventory.ConnectRequest{
		JunctionBoxElid: box.Elid,
		SpliceClosure:   box.SpliceClosure,
		DeviceElid:      far.Elid,
		CableTypeElid:   req.CableTypeElid,
		Wires:           req.Wires,
	})
	if err != nil {
		return Section{}, fmt.Errorf("connect %s: %w", req.Name(), err)
	}
	switch len(created) {
	case 0:
		return Section{}, inventory.NewRemoteServiceError("connect "+req.Name(), 200, "response lists no created cable")
	case 1:
	default:
		err := inventory.NewDataIntegrityError(inventory.KindDataCable, req.Name(), len(created), "created cable per connect")
		return Section{}, c.undo(ctx, req, created, false, err)
	}
	cableElid := created[0]

	if err := c.routes.PersistRoute(ctx, cableElid, hops); err != nil {
		err = fmt.Errorf("persist route of %s (%s): %w", req.Name(), cableElid, err)
		return Section{}, c.undo(ctx, req, created, false, err)
	}
	if err := c.cables.UpdateCable(ctx, cableElid, req.Name(), req.Name()); err != nil {
		err = fmt.Errorf("rename %s: %w", cableElid, err)
		return Section{}, c.undo(ctx, req, created, true, err)
	}

	c.logger.Info("connected cable section",
		"cable", req.Name(), "elid", cableElid, "hops", len(hops), "fist", box.SpliceClosure)
	return Section{Index: req.Section, Name: req.Name(), Elid: cableElid, Hops: hops}, nil
}

// undo deletes cables created by a connect that could not be completed, and
// their stored routes when routed is set. The result joins cause with any
// cleanup failure, so the cause's code still classifies the outcome.
func (c *Connector) undo(ctx context.Context, req SectionRequest, created []string, routed bool, cause error) error {
	ctx = context.WithoutCancel(ctx)
	errs := []error{cause}
	for _, elid := range created {
		if routed {
			if _, err := c.routes.DeleteRoute(ctx, elid); err != nil {
				errs = append(errs, fmt.Errorf("undo route of %s: %w", elid, err))
			}
		}
		if err := c.cables.DeleteCable(ctx, elid); err != nil {
			errs = append(errs, fmt.Errorf("undo connect of %s: %w", elid, err))
			continue
		}
		c.logger.Warn("removed incomplete cable section", "cable", req.Name(), "elid", elid, "reason", cause)
	}
	return errors.Join(errs...)
}

// resolveEnds resolves start and end concurrently. Both lookups always run
// to completion and the more severe failure wins, start first on a tie, so
// the error a caller branches on does not depend on timing.
func (c *Connector) resolveEnds(ctx context.Context, req SectionRequest) (inventory.ResolvedEndpoint, inventory.ResolvedEndpoint, error) {
	var (
		start, end       inventory.ResolvedEndpoint
		startErr, endErr error
		g                errgroup.Group
	)
	g.Go(func() error {
		start, startErr = c.resolver.Resolve(ctx, req.Start)
		return nil
	})
	g.Go(func() error {
		end, endErr = c.resolver.Resolve(ctx, req.End)
		return nil
	})
	_ = g.Wait()
	return start, end, worse(startErr, endErr)
}

// severity ranks resolution failures. Unclassified errors (a cancelled
// context, a transport failure) rank highest.
func severity(err error) int {
	switch inventory.CodeOf(err) {
	case "":
		return 4
	case inventory.ErrCodeRemoteService:
		return 3
	case inventory.ErrCodeDataIntegrity:
		return 2
	default:
		return 1
	}
}

func worse(a, b error) error {
	switch {
	case b == nil:
		return a
	case a == nil:
		return b
	case severity(b) > severity(a):
		return b
	default:
		return a
	}
}

// pickJunctionBox returns (junction box, other end). A connect call starts at
// a junction box, so exactly one end must be one.
func pickJunctionBox(req SectionRequest, start, end inventory.ResolvedEndpoint) (inventory.ResolvedEndpoint, inventory.ResolvedEndpoint, error) {
	var problem string
	switch {
	case start.JunctionBox && !end.JunctionBox:
		return start, end, nil
	case end.JunctionBox && !start.JunctionBox:
		return end, start, nil
	case start.JunctionBox:
		problem = "both ends of cable %s are junction boxes (%s, %s)"
	default:
		problem = "neither end of cable %s is a junction box (%s, %s)"
	}
	return start, end, &inventory.Error{
		Code:    inventory.ErrCodeEndpointNotFound,
		Message: fmt.Sprintf(problem, req.Name(), req.Start, req.End),
		Entity:  inventory.KindDataCable,
		Key:     req.Handle,
		Err:     ErrJunctionBoxPairing,
	}
}
