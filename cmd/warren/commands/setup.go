package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/warren/internal/cache"
	"github.com/dyluth/warren/internal/cachectl"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/execgen"
	"github.com/dyluth/warren/internal/printer"
)

// loadConfig loads and validates warren.yml from the --config path.
func loadConfig() (*config.WarrenConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			"failed to load configuration",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Check the configuration file:\n  %s", configPath)},
		)
	}
	return cfg, nil
}

// openStore creates the configured cache backend. The returned closer is a
// no-op for the local backend. For Redis the connection is verified up front
// so backend problems surface as a clear error rather than per-operation
// noise.
func openStore(ctx context.Context, cfg *config.WarrenConfig) (cachectl.Store, func(), error) {
	switch cfg.Cache.Backend {
	case "local":
		store, err := cache.NewLocalCache(cfg.ArtifactRoot, cfg.Cache.Local.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local cache: %w", err)
		}
		return store, func() {}, nil

	case "redis":
		store, err := cache.NewRedisCache(&redis.Options{Addr: cfg.Cache.Redis.Addr}, cfg.Cache.Redis.Namespace, cfg.ArtifactRoot)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open Redis cache: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, printer.ErrorWithContext(
				"cannot reach Redis cache",
				"The configured Redis cache did not respond.",
				map[string]string{"addr": cfg.Cache.Redis.Addr},
				[]string{"Check the cache.redis.addr setting in warren.yml"},
			)
		}
		return store, func() { store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}

// buildGenerator creates the exec-based generator from the configured
// language definitions, in name order.
func buildGenerator(cfg *config.WarrenConfig) (*execgen.Generator, error) {
	names := make([]string, 0, len(cfg.Languages))
	for name := range cfg.Languages {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]execgen.LanguageSpec, 0, len(names))
	for _, name := range names {
		lang := cfg.Languages[name]
		specs = append(specs, execgen.LanguageSpec{
			Name:      name,
			Consumers: lang.Consumers,
			Command:   lang.Command,
			Outputs:   lang.Outputs,
		})
	}

	gen, err := execgen.New(cfg.ArtifactRoot, cfg.Generate.Label, specs)
	if err != nil {
		return nil, fmt.Errorf("invalid language configuration: %w", err)
	}
	return gen, nil
}

// sortedKeys returns the keys of a string-keyed map in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
