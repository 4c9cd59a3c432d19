package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainContent        = "incr/content/v1"
	DomainSnapshot       = "incr/snapshot/v1"
	DomainImplementation = "incr/implementation/v1"
	DomainCacheKey       = "incr/cache-key/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentSignature returns the signature of a file's bytes.
func ContentSignature(data []byte) Signature {
	return Signature(hashWithDomain(DomainContent, data))
}

// ReaderSignature streams r into a content signature.
func ReaderSignature(r io.Reader) (Signature, error) {
	h := sha256.New()
	h.Write([]byte(DomainContent))
	h.Write([]byte{0x00})
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return Signature(hex.EncodeToString(h.Sum(nil))), nil
}

// Hash returns the content-addressed identity of the snapshot.
func (s Snapshot) Hash() string {
	canonical, err := MarshalCanonical(s)
	if err != nil {
		// Paths are validated on construction; canonical marshaling cannot fail.
		panic(fmt.Sprintf("snapshot hash: %v", err))
	}
	return hashWithDomain(DomainSnapshot, canonical)
}

// ImplementationHash hashes the parts of a unit's definition that are not
// file inputs (command, environment, working directory...).
// Fields are hashed as a canonical object so key order does not matter.
func ImplementationHash(fields map[string]any) (string, error) {
	canonical, err := MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("implementation hash: %w", err)
	}
	return hashWithDomain(DomainImplementation, canonical), nil
}

// CacheKey computes the build cache key of a unit execution.
// The key changes whenever the identity, implementation or any input file changes.
func CacheKey(identity, implementation string, inputs Snapshot) string {
	obj := map[string]any{
		"identity":       identity,
		"implementation": implementation,
		"inputs":         inputs,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		panic(fmt.Sprintf("cache key: %v", err))
	}
	return hashWithDomain(DomainCacheKey, canonical)
}
