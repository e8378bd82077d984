package harness

import "github.com/roach88/querybuilder/internal/envelope"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion holds.
	Pass bool `json:"pass"`

	// Composite is the converted composite query.
	Composite envelope.CompositeQuery `json:"compositeQuery"`

	// Request is the query_range payload; set only for prepare.
	Request *envelope.QueryRangeRequest `json:"request,omitempty"`

	// Legends maps envelope names to their legends.
	Legends map[string]string `json:"legends"`

	// Problems are the composite validation findings.
	Problems []envelope.ValidationError `json:"problems,omitempty"`

	// Errors holds assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Legends: map[string]string{},
		Errors:  []string{},
	}
}

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Output is the value snapshotted in golden files.
func (r *Result) Output() any {
	if r.Request != nil {
		return r.Request
	}
	return r.Composite
}
