package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertNames:
		return assertOrder(a.Type, a.Names, envelopeNames(r))
	case AssertKinds:
		return assertOrder(a.Type, a.Kinds, envelopeKinds(r))
	case AssertRequestType:
		return assertRequestType(r, a)
	case AssertLegend:
		return assertLegend(r, a)
	case AssertProblems:
		return assertProblems(r, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func envelopeNames(r *Result) []string {
	names := make([]string, 0, len(r.Composite.Queries))
	for _, env := range r.Composite.Queries {
		names = append(names, env.Name())
	}
	return names
}

func envelopeKinds(r *Result) []string {
	kinds := make([]string, 0, len(r.Composite.Queries))
	for _, env := range r.Composite.Queries {
		kinds = append(kinds, string(env.Type))
	}
	return kinds
}

func assertOrder(kind string, want, got []string) error {
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: "[" + strings.Join(want, ", ") + "]",
		Actual:   "[" + strings.Join(got, ", ") + "]",
	}
}

func assertRequestType(r *Result, a Assertion) error {
	if r.Request == nil {
		return &AssertionError{Type: a.Type, Expected: a.RequestType, Actual: "no request"}
	}
	if string(r.Request.RequestType) != a.RequestType {
		return &AssertionError{Type: a.Type, Expected: a.RequestType, Actual: string(r.Request.RequestType)}
	}
	return nil
}

func assertLegend(r *Result, a Assertion) error {
	legend, ok := r.Legends[a.Name]
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s with legend %q", a.Name, a.Legend),
			Actual:   fmt.Sprintf("no envelope named %s", a.Name),
		}
	}
	if legend != a.Legend {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%q", a.Legend), Actual: fmt.Sprintf("%q", legend)}
	}
	return nil
}

func assertProblems(r *Result, a Assertion) error {
	if len(r.Problems) == a.Count {
		return nil
	}
	found := make([]string, 0, len(r.Problems))
	for _, p := range r.Problems {
		found = append(found, p.Error())
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d problem(s)", a.Count),
		Actual:   fmt.Sprintf("%d problem(s): %s", len(r.Problems), strings.Join(found, "; ")),
	}
}
