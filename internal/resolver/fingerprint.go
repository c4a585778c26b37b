// Package resolver resolves user-supplied fingerprint prefixes to full
// cache entries, so cache maintenance commands accept the truncated
// fingerprints shown by cache ls.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/warren/internal/cache"
)

// MinPrefixLength is the minimum required length for fingerprint prefixes.
// Set to 6 characters to balance usability with collision avoidance.
const MinPrefixLength = 6

// FullFingerprintLength is the length of a complete hex fingerprint.
const FullFingerprintLength = 64

// ResolveFingerprint resolves a fingerprint prefix to a cache entry.
// Returns the entry if exactly one match is found.
// Returns an error if zero or multiple entries match.
//
// The function handles three cases:
// 1. Input is already a full fingerprint - looks it up directly
// 2. Input is too short (< 6 chars) - returns a validation error
// 3. Input is a prefix - scans the entry list and returns the unique match
func ResolveFingerprint(ctx context.Context, lister cache.Lister, prefix string) (cache.EntryInfo, error) {
	if len(prefix) < MinPrefixLength {
		return cache.EntryInfo{}, fmt.Errorf("fingerprint prefix must be at least %d characters (got %d)", MinPrefixLength, len(prefix))
	}

	entries, err := lister.Entries(ctx)
	if err != nil {
		return cache.EntryInfo{}, fmt.Errorf("failed to search for cache entry: %w", err)
	}

	// A full fingerprint matches exactly, never as a prefix of another.
	if len(prefix) == FullFingerprintLength {
		for _, entry := range entries {
			if entry.Key.Fingerprint == prefix {
				return entry, nil
			}
		}
		return cache.EntryInfo{}, &NotFoundError{Prefix: prefix}
	}

	var matches []cache.EntryInfo
	for _, entry := range entries {
		if strings.HasPrefix(entry.Key.Fingerprint, prefix) {
			matches = append(matches, entry)
		}
	}

	switch len(matches) {
	case 0:
		return cache.EntryInfo{}, &NotFoundError{Prefix: prefix}
	case 1:
		return matches[0], nil
	default:
		fps := make([]string, len(matches))
		for i, m := range matches {
			fps[i] = m.Key.Fingerprint
		}
		return cache.EntryInfo{}, &AmbiguousError{Prefix: prefix, Matches: fps}
	}
}

// NotFoundError indicates no cache entries matched the prefix.
type NotFoundError struct {
	Prefix string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no cache entries found matching '%s'", e.Prefix)
}

// AmbiguousError indicates multiple cache entries matched the prefix.
type AmbiguousError struct {
	Prefix  string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous fingerprint prefix '%s' matches %d entries", e.Prefix, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous
// prefixes. Lists all matching fingerprints (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("Error: ambiguous fingerprint prefix '%s' matches %d entries:\n", err.Prefix, len(err.Matches))

	// List up to 10 matches
	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse a longer prefix to uniquely identify the entry."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
