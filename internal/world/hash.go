package world

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without ambiguity.
const (
	DomainState       = "retrograde/state/v1"
	DomainDelta       = "retrograde/delta/v1"
	DomainFingerprint = "retrograde/fingerprint/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash computes the content-addressed identity of a state.
// Identical states always hash identically; this is what makes
// determinism checks and golden traces byte-stable.
func StateHash(s *State) (string, error) {
	canonical, err := MarshalCanonical(s)
	if err != nil {
		return "", fmt.Errorf("StateHash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// DeltaHash computes the content-addressed identity of a delta.
func DeltaHash(d Delta) (string, error) {
	canonical, err := MarshalCanonical(d)
	if err != nil {
		return "", fmt.Errorf("DeltaHash: %w", err)
	}
	return hashWithDomain(DomainDelta, canonical), nil
}

// HashWithDomain exposes domain-separated hashing for sibling packages
// that define their own canonical payloads (rule fingerprints).
func HashWithDomain(domain string, data []byte) string {
	return hashWithDomain(domain, data)
}
