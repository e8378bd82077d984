// Package filter composes the flat AND filter group of a builder query from
// free-text input and selected suggestions.
//
// The operator vocabulary is gated by attribute type: strings get the full
// set, numbers get comparisons, IN and BETWEEN, booleans get equality only.
// No numeric attribute is ever offered LIKE.
//
// Filter items are keyed by attribute name. Adding a term for a key that is
// already filtered replaces the old term (Upsert) instead of stacking a
// second one.
package filter
