package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints. The version suffix allows the
// encoding to evolve without colliding with older fingerprints.
const (
	DomainUnit   = "tierc/unit/v1"
	DomainInput  = "tierc/input/v1"
	DomainConfig = "tierc/config/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical encoding of v under domain.
func Fingerprint(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// FingerprintBytes hashes already-canonical bytes under domain.
func FingerprintBytes(domain string, canonical []byte) string {
	return hashWithDomain(domain, canonical)
}

// UnitFingerprint is the content address of a unit's IR.
func UnitFingerprint(u *Unit) (string, error) {
	return Fingerprint(DomainUnit, u.Value())
}
