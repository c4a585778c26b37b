package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/cache"
	"github.com/dyluth/warren/internal/codegen"
	"github.com/dyluth/warren/internal/fingerprint"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/products"
	"github.com/dyluth/warren/pkg/buildgraph"
)

var (
	genForceLangs   []string
	genNoCache      bool
	genNoCacheWrite bool
)

var genCmd = &cobra.Command{
	Use:   "gen [TARGET...]",
	Short: "Run incremental code generation",
	Long: `Run one code generation pass over the configured build graph.

With no arguments, every configured target is in scope. Naming targets
restricts the pass to those targets (consumers are always considered
during discovery).

Only generation sources whose fingerprints changed since the last run are
regenerated; unchanged output is restored from the artifact cache when
possible. Freshly generated artifacts are written back to the cache.

Examples:
  # Generate everything that changed
  warren gen

  # Restrict the pass to two targets
  warren gen thrift:api thrift:base

  # Generate java for every source regardless of consumers
  warren gen --force java

  # Skip the artifact cache entirely
  warren gen --no-cache`,
	RunE: runGen,
}

func init() {
	genCmd.Flags().StringSliceVar(&genForceLangs, "force", nil, "Generate this language for every in-scope source (repeatable)")
	genCmd.Flags().BoolVar(&genNoCache, "no-cache", false, "Disable artifact cache reads and writes")
	genCmd.Flags().BoolVar(&genNoCacheWrite, "no-cache-write", false, "Read from the artifact cache but never write to it")

	rootCmd.AddCommand(genCmd)
}

func runGen(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	graph, err := cfg.BuildGraph()
	if err != nil {
		return printer.Error(
			"invalid build graph",
			fmt.Sprintf("Error: %v", err),
			[]string{"Check the targets section of warren.yml"},
		)
	}

	// Resolve the pass scope: named targets, or everything.
	var targets []*buildgraph.Target
	if len(args) == 0 {
		targets = graph.Targets()
	} else {
		for _, id := range args {
			t, ok := graph.Target(id)
			if !ok {
				return printer.Error(
					fmt.Sprintf("unknown target: %s", id),
					"The named target is not defined in the configuration.",
					[]string{"List defined targets:\n  warren graph"},
				)
			}
			targets = append(targets, t)
		}
	}

	if err := os.MkdirAll(cfg.ArtifactRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact root: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StateFile), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	gen, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	inval, err := fingerprint.NewInvalidator(cfg.StateFile)
	if err != nil {
		return printer.Error(
			"failed to load fingerprint state",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Remove the state file to force a full regeneration:\n  rm %s", cfg.StateFile)},
		)
	}

	cacheEnabled := *cfg.Cache.Enabled && !genNoCache
	var artifactCache cache.ArtifactCache
	if cacheEnabled {
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		artifactCache = store
	}

	force := make(map[string]bool)
	for _, lang := range cfg.Generate.Force {
		force[lang] = true
	}
	for _, lang := range genForceLangs {
		if _, ok := cfg.Languages[lang]; !ok {
			return printer.Error(
				fmt.Sprintf("unknown language: %s", lang),
				"--force must name a language defined in warren.yml.",
				nil,
			)
		}
		force[lang] = true
	}

	orch := codegen.New(graph, gen, products.NewRegistry(cfg.ArtifactRoot), inval, artifactCache, codegen.Options{
		ForceLanguages: force,
		CacheEnabled:   cacheEnabled,
		WriteToCache:   *cfg.Cache.Write && !genNoCacheWrite,
	})

	result, err := orch.Execute(ctx, targets)
	if err != nil {
		return printer.Error(
			"code generation failed",
			fmt.Sprintf("Error: %v", err),
			[]string{"Completed work was kept; rerun after fixing the cause."},
		)
	}

	for _, lang := range sortedKeys(result.AssignedByLang) {
		printer.Step("%s: %d generation source(s)\n", lang, len(result.AssignedByLang[lang]))
	}
	printer.Success("generation complete: %d generated, %d cache hit(s), %d cache write(s), %d synthetic target(s)\n",
		result.GeneratedSets, result.CacheHits, result.CacheWrites, len(result.Synthetic))
	return nil
}
