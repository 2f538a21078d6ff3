// Package sanitizer normalizes free-form booking input before validation and storage.
//
// All normalization functions are idempotent - applying them multiple times produces
// the same result.
package sanitizer
