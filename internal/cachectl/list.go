// Package cachectl implements inspection and maintenance of the artifact
// cache: listing entries, showing entry detail, and resolving fingerprint
// prefixes for removal and restore.
package cachectl

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/dyluth/warren/internal/cache"
)

// OutputFormat specifies how to format the entry list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated fingerprints
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete entries as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for cache ls.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	TargetGlob       string // Glob pattern for the target ID, empty = no filter
}

// matchesFilter returns true if the entry matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(entry cache.EntryInfo) bool {
	// Time filtering
	if fc.SinceTimestampMs > 0 && entry.CreatedAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && entry.CreatedAtMs > fc.UntilTimestampMs {
		return false
	}

	// Target filtering - glob pattern matching
	if fc.TargetGlob != "" {
		matched, err := filepath.Match(fc.TargetGlob, entry.Key.ID)
		if err != nil || !matched {
			return false
		}
	}

	return true
}

// ListEntries retrieves all cache entries and writes them to the provided
// writer. Applies filter criteria if provided. Sorts entries by creation
// time for stable chronological output.
func ListEntries(ctx context.Context, lister cache.Lister, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	all, err := lister.Entries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}

	var entries []cache.EntryInfo
	for _, entry := range all {
		if filters != nil && !filters.matchesFilter(entry) {
			continue
		}
		entries = append(entries, entry)
	}

	// Sort by creation time (oldest first) for chronological output
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAtMs < entries[j].CreatedAtMs
	})

	switch format {
	case OutputFormatDefault:
		FormatTable(w, entries)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, entries); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
