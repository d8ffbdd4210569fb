// Package sanitizer normalizes user supplied fields before validation and
// storage.
//
// All functions are idempotent and never fail: invalid input degrades to an
// empty string or an empty slice.
package sanitizer
