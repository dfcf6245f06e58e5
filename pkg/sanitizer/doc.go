// Package sanitizer normalises request input before validation and storage.
//
// All functions are idempotent and never fail: invalid input collapses to an
// empty value that validation then rejects.
package sanitizer
