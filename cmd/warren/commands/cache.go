package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/cachectl"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/resolver"
	"github.com/dyluth/warren/internal/timespec"
)

var (
	cacheOutputFormat string
	cacheSince        string
	cacheUntil        string
	cacheTarget       string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the artifact cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var cacheLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List artifact cache entries with filtering",
	Long: `List artifact cache entries as a table or JSONL stream.

Output Formats:
  default - Human-readable table with fingerprint, target, size and age
  jsonl   - Line-delimited JSON, one entry per line

Time Filters:
  --since  - Show entries created after this time
  --until  - Show entries created before this time

Content Filters:
  --target - Filter by target ID (glob pattern: "thrift:*")

Examples:
  # List all cache entries
  warren cache ls

  # Entries for thrift targets written in the last two hours
  warren cache ls --target="thrift:*" --since=2h

  # Pipe entries to jq
  warren cache ls --output=jsonl | jq .key`,
	RunE: runCacheLs,
}

var cacheGetCmd = &cobra.Command{
	Use:   "get FINGERPRINT",
	Short: "Show one cache entry as pretty-printed JSON",
	Long: `Show complete details of a single cache entry.

Accepts a fingerprint prefix (at least 6 characters) as shown by
warren cache ls.`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheGet,
}

var cacheRmCmd = &cobra.Command{
	Use:   "rm FINGERPRINT",
	Short: "Delete one cache entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheRm,
}

var cacheRestoreCmd = &cobra.Command{
	Use:   "restore FINGERPRINT",
	Short: "Restore a cache entry's artifacts under the artifact root",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheRestore,
}

func init() {
	cacheLsCmd.Flags().StringVarP(&cacheOutputFormat, "output", "o", "default", "Output format: default or jsonl")

	// Time-based filters
	cacheLsCmd.Flags().StringVar(&cacheSince, "since", "", "Show entries after time (duration or RFC3339)")
	cacheLsCmd.Flags().StringVar(&cacheUntil, "until", "", "Show entries before time (duration or RFC3339)")

	// Content-based filters
	cacheLsCmd.Flags().StringVar(&cacheTarget, "target", "", "Filter by target ID (glob pattern)")

	cacheCmd.AddCommand(cacheLsCmd)
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheRmCmd)
	cacheCmd.AddCommand(cacheRestoreCmd)
	rootCmd.AddCommand(cacheCmd)
}

// cacheStore opens the configured backend for a maintenance command.
func cacheStore(ctx context.Context) (cachectl.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return openStore(ctx, cfg)
}

func runCacheLs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var format cachectl.OutputFormat
	switch cacheOutputFormat {
	case "default":
		format = cachectl.OutputFormatDefault
	case "jsonl":
		format = cachectl.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", cacheOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	sinceMS, untilMS, err := timespec.ParseRange(cacheSince, cacheUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			fmt.Sprintf("Error: %v", err),
			[]string{"Use a duration like '2h' or an RFC3339 timestamp"},
		)
	}

	store, closeStore, err := cacheStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	filters := &cachectl.FilterCriteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		TargetGlob:       cacheTarget,
	}
	return cachectl.ListEntries(ctx, store, format, filters, os.Stdout)
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, closeStore, err := cacheStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := cachectl.GetEntry(ctx, store, args[0], os.Stdout); err != nil {
		return cacheEntryError(err)
	}
	return nil
}

func runCacheRm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, closeStore, err := cacheStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := cachectl.RemoveEntry(ctx, store, args[0])
	if err != nil {
		return cacheEntryError(err)
	}
	printer.Success("removed cache entry %s\n", removed.Key)
	return nil
}

func runCacheRestore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, closeStore, err := cacheStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	restored, err := cachectl.RestoreEntry(ctx, store, args[0])
	if err != nil {
		return cacheEntryError(err)
	}
	printer.Success("restored %d artifact(s) from %s\n", restored.ArtifactCount, restored.Key)
	return nil
}

// cacheEntryError renders resolver failures with suggestions; everything
// else passes through.
func cacheEntryError(err error) error {
	var ambiguous *resolver.AmbiguousError
	if errors.As(err, &ambiguous) {
		fmt.Fprintln(os.Stderr, resolver.FormatAmbiguousError(ambiguous))
		return err
	}
	if resolver.IsNotFoundError(err) {
		return printer.Error(
			err.Error(),
			"No cache entry matches that fingerprint prefix.",
			[]string{"List entries and their fingerprints:\n  warren cache ls"},
		)
	}
	return err
}
