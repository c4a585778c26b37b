package cachectl

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/warren/internal/cache"
	"github.com/dyluth/warren/internal/resolver"
)

// Store is the cache surface the maintenance commands need: full entry
// operations plus listing. Both cache backends satisfy it.
type Store interface {
	cache.ArtifactCache
	cache.Lister
}

// GetEntry resolves a fingerprint prefix and writes the entry as
// pretty-printed JSON to the writer.
func GetEntry(ctx context.Context, store Store, prefix string, w io.Writer) error {
	entry, err := resolver.ResolveFingerprint(ctx, store, prefix)
	if err != nil {
		return err
	}

	if err := FormatSingleJSON(w, entry); err != nil {
		return fmt.Errorf("failed to format entry: %w", err)
	}
	return nil
}

// RemoveEntry resolves a fingerprint prefix and deletes the entry. Returns
// the entry that was removed.
func RemoveEntry(ctx context.Context, store Store, prefix string) (cache.EntryInfo, error) {
	entry, err := resolver.ResolveFingerprint(ctx, store, prefix)
	if err != nil {
		return cache.EntryInfo{}, err
	}

	if err := store.Delete(ctx, entry.Key); err != nil {
		return cache.EntryInfo{}, fmt.Errorf("failed to delete cache entry %s: %w", entry.Key, err)
	}
	return entry, nil
}

// RestoreEntry resolves a fingerprint prefix and restores the entry's
// artifacts under the cache's artifact root. Returns the restored entry.
func RestoreEntry(ctx context.Context, store Store, prefix string) (cache.EntryInfo, error) {
	entry, err := resolver.ResolveFingerprint(ctx, store, prefix)
	if err != nil {
		return cache.EntryInfo{}, err
	}

	used, err := store.UseCachedFiles(ctx, entry.Key)
	if err != nil {
		return cache.EntryInfo{}, fmt.Errorf("failed to restore cache entry %s: %w", entry.Key, err)
	}
	if !used {
		// The entry vanished between resolution and restore.
		return cache.EntryInfo{}, fmt.Errorf("cache entry %s no longer exists", entry.Key)
	}
	return entry, nil
}
