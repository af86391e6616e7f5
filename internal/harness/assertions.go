package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/topoload/internal/loader"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func (h *Harness) assert(rep *loader.Report, a Assertion) error {
	switch a.Type {
	case AssertRecordCount:
		return h.assertRecordCount(a)
	case AssertCallCount:
		return h.assertCallCount(a)
	case AssertRoute:
		return h.assertRoute(a)
	case AssertOutcome:
		return assertOutcome(rep, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) assertRecordCount(a Assertion) error {
	if got := len(h.inv.Records(a.Kind)); got != a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d %s record(s)", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

func (h *Harness) assertCallCount(a Assertion) error {
	if got := h.inv.CallCount(a.Op, a.Kind); got != a.Count {
		target := "any kind"
		if a.Kind != "" {
			target = string(a.Kind)
		}
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d %s call(s) on %s", a.Count, a.Op, target),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertRoute compares the stored hops of a cable section. An empty hop list
// asserts that the section has no stored route.
func (h *Harness) assertRoute(a Assertion) error {
	elid, ok := h.cableElid(a.Cable)
	if !ok {
		if len(a.Hops) == 0 {
			return nil
		}
		return &AssertionError{
			Type:     AssertRoute,
			Expected: fmt.Sprintf("cable %s", a.Cable),
			Actual:   "no such cable",
		}
	}

	var got []string
	for _, hop := range h.routes.Route(elid) {
		got = append(got, hop.TraySectionElid)
	}
	if !slices.Equal(got, a.Hops) {
		return &AssertionError{
			Type:     AssertRoute,
			Expected: fmt.Sprintf("%s via [%s]", a.Cable, strings.Join(a.Hops, " ")),
			Actual:   fmt.Sprintf("[%s]", strings.Join(got, " ")),
		}
	}
	return nil
}

func assertOutcome(rep *loader.Report, a Assertion) error {
	lr, ok := rep.Layer(a.Layer)
	if !ok || lr.Summary == nil {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("layer %s to have run", a.Layer),
			Actual:   "skipped or not selected",
		}
	}
	items := lr.Summary.Items()
	if a.Seq > len(items) {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("%s item %d", a.Layer, a.Seq),
			Actual:   fmt.Sprintf("%d item(s)", len(items)),
		}
	}
	if got := items[a.Seq-1].Outcome; got != a.Outcome {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("%s item %d %s", a.Layer, a.Seq, a.Outcome),
			Actual:   string(got),
		}
	}
	return nil
}
