package tool

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 16

// Fingerprint derives a deterministic cache key for a tool call from the
// tool name and its normalized arguments. Semantically identical calls hash
// to the same key regardless of map iteration order or formatting.
func Fingerprint(name string, args Args) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(canonicalJSON(args)))
	// Dot-separated so keys are valid in NATS KV buckets.
	return "tool." + name + "." + hex.EncodeToString(h.Sum(nil))[:fingerprintLen]
}

// QueryFingerprint derives a cache key for whole-query answer caching.
// Query text is normalized by trimming and collapsing whitespace.
func QueryFingerprint(query string) string {
	norm := strings.Join(strings.Fields(query), " ")
	sum := sha256.Sum256([]byte(norm))
	return "query." + hex.EncodeToString(sum[:])[:fingerprintLen]
}

// canonicalJSON renders args with stable key ordering.
func canonicalJSON(args Args) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kj, _ := json.Marshal(k)
		b.Write(kj)
		b.WriteByte(':')
		vj, err := json.Marshal(args[k])
		if err != nil {
			// Unmarshalable values still need a stable representation.
			vj = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", args[k])))
		}
		b.Write(vj)
	}
	b.WriteByte('}')
	return b.String()
}
