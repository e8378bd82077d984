// Package ir provides the scalar value types and canonical encoding shared by
// the query packages.
//
// This package imports nothing internal. queryir, filter, envelope and store
// build on it; it must stay the foundational layer.
//
// Key design constraints:
//   - Value is sealed: Null, String, Number, Bool and List only
//   - Canonical JSON is the only encoding used for fingerprints and golden files
//   - Fingerprints are domain separated so a query and a saved view never collide
package ir
