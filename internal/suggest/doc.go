// Package suggest fetches key and value suggestions for the filter input.
//
// Every keystroke goes through Autocompleter, which waits out a debounce
// window, stamps the request with a monotonic sequence number and fetches
// from a Source. Only the result of the most recently issued request is
// delivered; results of superseded requests are dropped even when they
// arrive later (last request wins, not first response wins).
//
// Cancelling a superseded fetch is advisory. The Source may ignore the
// context and finish anyway; its result is discarded.
//
// Source errors never escape as errors or panics. They arrive as a Result
// with empty suggestions and Err set, which callers render as an empty
// suggestion state.
package suggest
