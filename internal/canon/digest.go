package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for digests. The version suffix allows changing the
// canonical form without colliding with old digests.
const (
	DomainEvent    = "tap/event/v1"
	DomainSnapshot = "tap/snapshot/v1"
	DomainTrace    = "tap/trace/v1"
)

// Digest returns the hex SHA-256 of domain, a 0x00 separator and the
// canonical JSON of v.
func Digest(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
