package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainIdentity = "recon/identity/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// IdentityHash computes the matching key for an ordered identity-value
// object. The same logical values in the same declared order always yield
// the same hash, within and across processes. Reordering the identity
// fields changes the hash.
func IdentityHash(values *IRObject) (string, error) {
	canonical, err := MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("IdentityHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainIdentity, canonical), nil
}

// MustIdentityHash is like IdentityHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustIdentityHash(values *IRObject) string {
	h, err := IdentityHash(values)
	if err != nil {
		panic(err)
	}
	return h
}
