package codegen

import (
	"context"
	"fmt"

	"github.com/dyluth/warren/internal/cache"
	"github.com/dyluth/warren/internal/fingerprint"
	"github.com/dyluth/warren/pkg/buildgraph"
)

// generate brings every assigned generation source up to date. The invalid
// partition is computed by the invalidator (with dependent invalidation
// inherent in transitive fingerprints); only invalid sets are regenerated,
// and an invalid set whose artifacts are still in the cache is restored
// instead of regenerated.
//
// Cache writes are batched per versioned target set: all artifacts produced
// for the set's targets, across every language, go into one entry keyed by
// the set's fingerprint.
func (o *Orchestrator) generate(ctx context.Context, p *plan, result *Result) error {
	inScope := make(map[*buildgraph.Target]bool)
	for _, assigned := range p.byLang {
		for _, t := range assigned {
			inScope[t] = true
		}
	}
	if len(inScope) == 0 {
		return nil
	}

	check, err := o.inval.Partition(sortedTargets(inScope))
	if err != nil {
		return err
	}

	// Persist whatever was validated, even when a generator fails midway:
	// completed work stays valid on the next run.
	defer func() {
		if err := o.inval.Save(); err != nil {
			o.logEvent("state_save_failed", map[string]interface{}{
				"level": "warn",
				"error": err.Error(),
			})
		}
	}()

	for _, vt := range check.Invalid {
		if err := ctx.Err(); err != nil {
			return err
		}

		if o.cacheRecover(ctx, vt) {
			result.CacheHits++
			o.inval.MarkValid(vt)
			continue
		}

		members := make(map[*buildgraph.Target]bool, len(vt.Targets))
		for _, t := range vt.Targets {
			members[t] = true
		}

		var artifacts []string
		for _, lang := range p.languages {
			var invalid []*buildgraph.Target
			for _, t := range p.byLang[lang.Name] {
				if members[t] {
					invalid = append(invalid, t)
				}
			}
			if len(invalid) == 0 {
				continue
			}
			produced, err := o.gen.Generate(ctx, lang.Name, invalid)
			if err != nil {
				return fmt.Errorf("generation failed for language %s, targets %v: %w", lang.Name, targetIDs(invalid), err)
			}
			artifacts = append(artifacts, produced...)
		}
		result.GeneratedSets++

		if o.cache != nil && o.opts.CacheEnabled && o.opts.WriteToCache && len(artifacts) > 0 {
			cache.Insert(ctx, o.cache, vt.Key, artifacts)
			result.CacheWrites++
		}
		o.inval.MarkValid(vt)
	}
	return nil
}

// cacheRecover tries to satisfy an invalid set from the artifact cache.
// Returns true if a usable entry was restored under the artifact root.
// Cache read failures are logged and treated as misses; the cache must never
// fail a build.
func (o *Orchestrator) cacheRecover(ctx context.Context, vt *fingerprint.VersionedTargetSet) bool {
	if o.cache == nil || !o.opts.CacheEnabled {
		return false
	}
	used, err := o.cache.UseCachedFiles(ctx, vt.Key)
	if err != nil {
		o.logEvent("cache_read_failed", map[string]interface{}{
			"level": "warn",
			"key":   vt.Key.String(),
			"error": err.Error(),
		})
		return false
	}
	return used
}
