// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent: applying them twice gives the same result
// as applying them once. They never fail; empty or whitespace-only input
// normalizes to the empty string.
//
// Normalization includes:
//   - Strings: collapse internal whitespace runs and trim the ends
//   - Names: the string rules, used for resource names and the person a booking is for
//   - Multiline text: trim each line and drop blank edges, keeping paragraph breaks
package sanitizer
