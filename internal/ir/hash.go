package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainContent = "bakecss/content/v1"
	DomainSlug    = "bakecss/slug/v1"
	DomainCache   = "bakecss/cache/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash identifies a source text.
func ContentHash(code string) string {
	return hashWithDomain(DomainContent, []byte(code))
}

// SlugHash computes the stable hash used in generated class names.
// The same (file, displayName, index) always yields the same slug.
func SlugHash(file, displayName string, index int) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"file":  file,
		"name":  displayName,
		"index": index,
	})
	if err != nil {
		return "", fmt.Errorf("SlugHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSlug, canonical), nil
}

// CacheKey computes the persisted cache key for one (file, token) entry.
// The content hash is part of the key so edits invalidate old rows.
func CacheKey(file, token, contentHash string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"file":         file,
		"token":        token,
		"content_hash": contentHash,
	})
	if err != nil {
		return "", fmt.Errorf("CacheKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCache, canonical), nil
}

// MustSlugHash is like SlugHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSlugHash(file, displayName string, index int) string {
	h, err := SlugHash(file, displayName, index)
	if err != nil {
		panic(err)
	}
	return h
}
