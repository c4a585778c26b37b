package cachectl

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/warren/internal/cache"
)

// FormatTable writes cache entries as a formatted table to the provided
// writer. Columns: FINGERPRINT (truncated), TARGET, FILES, SIZE, and AGE.
// Returns the number of entries formatted.
func FormatTable(w io.Writer, entries []cache.EntryInfo) int {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No cache entries found\n")
		return 0
	}

	// Print header row
	fmt.Fprintf(w, "%-14s %-30s %6s %9s %-8s\n",
		"FINGERPRINT", "TARGET", "FILES", "SIZE", "AGE")
	fmt.Fprintf(w, "%-14s %-30s %6s %9s %-8s\n",
		"--------------", "------------------------------", "------", "---------", "--------")

	// Print data rows
	for _, e := range entries {
		fmt.Fprintf(w, "%-14s %-30s %6d %9s %-8s\n",
			formatFingerprint(e.Key.Fingerprint),
			formatTarget(e.Key.ID),
			e.ArtifactCount,
			formatSize(e.SizeBytes),
			formatTimestamp(e.CreatedAtMs),
		)
	}

	// Print count
	countMsg := "entry"
	if len(entries) != 1 {
		countMsg = "entries"
	}
	fmt.Fprintf(w, "\n%d cache %s found\n", len(entries), countMsg)

	return len(entries)
}

// FormatJSONL writes cache entries as line-delimited JSON (JSONL) to the
// provided writer. Each entry is written as a single JSON object on its own
// line, ideal for processing with tools like jq.
func FormatJSONL(w io.Writer, entries []cache.EntryInfo) error {
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry to JSON: %w", err)
		}

		_, err = fmt.Fprintf(w, "%s\n", string(data))
		if err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single cache entry as pretty-printed JSON to the
// provided writer. Used by cache get to display complete entry details.
func FormatSingleJSON(w io.Writer, entry cache.EntryInfo) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry to JSON: %w", err)
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	// Add newline for clean output
	fmt.Fprintln(w)

	return nil
}

// formatFingerprint truncates a fingerprint to its first 12 characters for
// compact display, matching the prefix length accepted by cache rm/restore.
func formatFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// formatTarget truncates long target IDs for table display.
func formatTarget(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 30 {
		return id[:27] + "..."
	}
	return id
}

// formatSize formats a byte count for human display.
func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(bytes)/(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatTimestamp formats Unix timestamp in milliseconds to human-readable time.
// Shows relative time like "2m ago", "1h ago", etc.
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	// Convert ms to time
	t := time.Unix(timestampMs/1000, (timestampMs%1000)*1000000)

	// Calculate time difference from now
	diff := time.Since(t)

	// Format as relative time
	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	} else {
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
