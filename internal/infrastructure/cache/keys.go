package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY CONSTRUCTION
// Keys must be stable: the same filter must always produce the same key
// regardless of the order the caller supplied the fields in.
// ══════════════════════════════════════════════════════════════════════════════

// keyHashLen is the number of hex characters kept from the digest.
// 16 hex chars (64 bits) is enough to make collisions implausible at
// school scale while keeping keys short.
const keyHashLen = 16

// BuildKey derives a stable cache key from a namespace and a set of
// scope fields. Fields are rendered in sorted order as "name=value"
// pairs and hashed, so two callers describing the same scope in a
// different field order get the same key.
//
// Empty-valued fields are dropped before hashing: "no filter on this
// dimension" and "field absent" are the same scope.
func BuildKey(namespace string, fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name, value := range fields {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(fields[name])
	}

	digest := sha256.Sum256([]byte(b.String()))
	return namespace + ":" + hex.EncodeToString(digest[:])[:keyHashLen]
}
