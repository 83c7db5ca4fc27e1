package cache

import (
	"crypto/sha256"
	"fmt"
)

// Fingerprint computes the exact-match cache key for normalized query text.
// SHA-256 keeps the digest stable across process restarts so it can be used
// as a persisted lookup key; collision probability is treated as negligible
// for cache purposes. The empty normalized string hashes to a well-defined
// digest, the "empty query" bucket.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum)
}
