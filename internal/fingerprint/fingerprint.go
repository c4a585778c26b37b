// Package fingerprint computes and tracks build-input fingerprints for
// Warren targets. A fingerprint summarizes everything that determines a
// target's generated output: its source file contents and, transitively, the
// fingerprints of its dependencies. Fingerprints are the keys of the
// artifact cache and the unit of invalidation between runs.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// CacheKey identifies one versioned set of build inputs. Immutable once
// created.
//
// Two keys with equal fingerprints are assumed to address equivalent
// artifacts. This is not verified against artifact content; a hash collision
// or an impure generator can poison a cache entry. Accepted risk.
type CacheKey struct {
	// ID names the target (or partition of targets) the key belongs to.
	ID string

	// Fingerprint is a hex-encoded digest of all build inputs.
	Fingerprint string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s@%s", k.ID, shortFingerprint(k.Fingerprint))
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// HashFiles computes a digest over a set of files. Order and duplicates do
// not matter: paths are sorted and deduplicated before hashing. Each entry
// hashes the slash-normalized path and the file content, both
// length-prefixed so adjacent entries cannot alias.
//
// Paths that do not exist contribute only their name, so a target with a
// declared-but-absent source still fingerprints deterministically.
func HashFiles(paths []string) (string, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	h := sha256.New()
	buf := make([]byte, 8)
	writeField := func(b []byte) {
		binary.LittleEndian.PutUint64(buf, uint64(len(b)))
		h.Write(buf)
		h.Write(b)
	}

	var last string
	for _, p := range sorted {
		if p == last {
			continue
		}
		last = p

		writeField([]byte(path.Clean(filepath.ToSlash(p))))

		contents, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				writeField(nil)
				continue
			}
			return "", fmt.Errorf("failed to read %s: %w", p, err)
		}
		writeField(contents)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Combine folds multiple fingerprints into one. Inputs are hashed in the
// order given, length-prefixed.
func Combine(fingerprints ...string) string {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, fp := range fingerprints {
		binary.LittleEndian.PutUint64(buf, uint64(len(fp)))
		h.Write(buf)
		h.Write([]byte(fp))
	}
	return hex.EncodeToString(h.Sum(nil))
}
