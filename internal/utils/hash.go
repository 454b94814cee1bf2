package utils

import (
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"hash/fnv"
	"sync"
)

// hasherPool is a package-level pool of reusable SHA-256 hash instances.
var hasherPool = sync.Pool{
	New: func() any {
		return sha256.New()
	},
}

// Hash computes a SHA-256 digest over data using a hasher pulled from the
// package pool.
func Hash(data []byte) []byte {
	h := hasherPool.Get().(hash.Hash)
	h.Reset()

	h.Write(data)
	sum := h.Sum(nil)

	h.Reset()
	hasherPool.Put(h)

	return sum
}

// HashHex returns the hex-encoded SHA-256 digest of data.
func HashHex(data []byte) string {
	return hex.EncodeToString(Hash(data))
}

// ContentHash computes a stable hash over the semantically meaningful fields
// of a document.
//
// The document is serialized as JSON with map keys in sorted order (the
// encoding/json behaviour for maps at every nesting level), so two documents
// with equal values hash the same regardless of how they were built.
// Keys listed in exclude are left out before hashing.
//
// Example usage:
//
//	h, err := utils.ContentHash(doc, "createdAt", "updatedAt")
func ContentHash(doc map[string]any, exclude ...string) (string, error) {
	stable := make(map[string]any, len(doc))
	for k, v := range doc {
		stable[k] = v
	}
	for _, k := range exclude {
		delete(stable, k)
	}

	raw, err := json.Marshal(stable)
	if err != nil {
		return "", fmt.Errorf("error serializing document for hashing: %w", err)
	}
	return HashHex(raw), nil
}

// sha256Available reports whether the SHA-256 implementation is linked in.
// It is a variable so the fallback path can be exercised.
var sha256Available = crypto.SHA256.Available

// PhotoHash returns the content address of photo bytes: a hex SHA-256 digest
// when available, otherwise a 32-bit FNV-1a hash over the base64 rendering of
// the bytes.
func PhotoHash(data []byte) string {
	if sha256Available() {
		return HashHex(data)
	}
	return FNV1a32(base64.StdEncoding.EncodeToString(data))
}

// FNV1a32 returns the 32-bit FNV-1a hash of s as 8 hex characters.
func FNV1a32(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
