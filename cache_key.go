package gerbango

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// DefaultCacheNamespace prefixes every cache key so one store can be shared
// with other applications.
const DefaultCacheNamespace = "gerbango"

// KeyGenerator derives deterministic, collision-resistant cache keys from
// operation requests. Generation is pure: no I/O, no clock.
//
// Key shape: namespace:name:hash[:scope], where hash is the hex sha256 of a
// canonical serialization of the arguments sorted by key name. Two requests
// with the same name, argument set (any insertion order) and scope always
// produce the same key; any differing argument value produces a different
// key with overwhelming probability.
type KeyGenerator struct {
	namespace string
}

// NewKeyGenerator creates a generator using the given namespace prefix;
// an empty namespace falls back to DefaultCacheNamespace.
func NewKeyGenerator(namespace string) *KeyGenerator {
	if namespace == "" {
		namespace = DefaultCacheNamespace
	}
	return &KeyGenerator{namespace: namespace}
}

// Generate derives the cache key for req.
func (g *KeyGenerator) Generate(req Request) string {
	var b strings.Builder
	b.WriteString(g.namespace)
	b.WriteByte(':')
	b.WriteString(req.Name)
	b.WriteByte(':')
	b.WriteString(hashArgs(req.Args))
	if req.Scope != "" {
		b.WriteByte(':')
		b.WriteString(req.Scope)
	}
	return b.String()
}

// PatternForOperation returns a glob pattern matching every cached result of
// the named operation, across all argument sets and scopes.
func (g *KeyGenerator) PatternForOperation(name string) string {
	return g.namespace + ":" + name + ":*"
}

// PatternForScope returns a glob pattern matching every cached result stored
// for the given caller scope, across all operations.
func (g *KeyGenerator) PatternForScope(scope string) string {
	return g.namespace + ":*:" + scope
}

// hashArgs serializes args canonically (keys sorted, values JSON-encoded, so
// numbers render canonically and strings are escaped) and hashes the result.
func hashArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		// encoding/json sorts nested map keys, keeping nested values
		// deterministic too. Marshal errors (chan, func values) degrade to
		// the value's absence rather than a panic; such arguments are a
		// caller bug caught by upstream request validation.
		if v, err := json.Marshal(args[k]); err == nil {
			h.Write(v)
		}
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
