// Package tests provides the markers used by the Given/When/Should test
// output across the repository.
package tests

// Success is a unicode codepoint for a check mark.
const Success = "✓"

// Failed is a unicode codepoint for a check X mark.
const Failed = "✗"
