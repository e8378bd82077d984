package suggest

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

// Kind says whether a request asks for attribute keys or attribute values.
type Kind string

const (
	KindKeys   Kind = "keys"
	KindValues Kind = "values"
)

// Request scopes a suggestion fetch the way the suggestion service expects:
// by data source, the query's aggregate operator and attribute, and the text
// typed so far. Key is set only for value requests.
type Request struct {
	DataSource         queryir.DataSource `json:"dataSource"`
	AggregateOperator  string             `json:"aggregateOperator,omitempty"`
	AggregateAttribute string             `json:"aggregateAttribute,omitempty"`
	SearchText         string             `json:"searchText"`
	Key                string             `json:"key,omitempty"`
}

// RequestFor builds the request for q as it currently stands.
func RequestFor(q queryir.BuilderQuery, searchText string) Request {
	return Request{
		DataSource:         q.DataSource,
		AggregateOperator:  q.AggregateOperator,
		AggregateAttribute: q.AggregateAttribute.Key,
		SearchText:         searchText,
	}
}

// cacheKey identifies a request for caching and fetch de-duplication.
// Search text is case folded so "Service" and "service" share an entry.
func (r Request) cacheKey(kind Kind) string {
	return strings.Join([]string{
		string(kind),
		string(r.DataSource),
		r.AggregateOperator,
		r.AggregateAttribute,
		r.Key,
		Fold(r.SearchText),
	}, "\x00")
}

// Fold returns the case folded form of s used for matching.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Source is the suggestion service collaborator.
type Source interface {
	// Keys returns attribute keys matching req.SearchText.
	Keys(ctx context.Context, req Request) ([]queryir.AttributeKey, error)

	// Values returns values of attribute req.Key matching req.SearchText.
	Values(ctx context.Context, req Request) ([]ir.Value, error)
}

// Result is one delivered suggestion list. Keys is set for key requests,
// Values for value requests; the other is empty.
type Result struct {
	Seq     uint64
	Kind    Kind
	Request Request
	Keys    []queryir.AttributeKey
	Values  []ir.Value
	Err     error
}

// Empty reports whether the result carries no suggestions.
func (r Result) Empty() bool {
	return len(r.Keys) == 0 && len(r.Values) == 0
}

// clone copies the suggestion slices so a delivered result shares no
// backing array with the cache.
func (r Result) clone() Result {
	r.Keys = slices.Clone(r.Keys)
	r.Values = slices.Clone(r.Values)
	return r
}
