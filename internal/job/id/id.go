// Package id provides unique identifier generation for generation jobs.
package id

import "github.com/google/uuid"

// Prefix starts every job ID.
const Prefix = "gen-"

// Generate creates a new unique job ID.
// Format: gen-<uuid v4>
// Example: gen-9b2f0c1e-4d3a-4f6b-8a1c-2e5d7f9b0c3a
func Generate() string {
	return Prefix + uuid.NewString()
}

// Valid reports whether s has the shape of a generated ID.
func Valid(s string) bool {
	if len(s) <= len(Prefix) || s[:len(Prefix)] != Prefix {
		return false
	}
	_, err := uuid.Parse(s[len(Prefix):])
	return err == nil
}
