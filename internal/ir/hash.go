package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without colliding with old keys.
const (
	DomainGraph     = "graphc/graph/v1"
	DomainSignature = "graphc/signature/v1"
	DomainNode      = "graphc/node/v1"
	DomainCacheKey  = "graphc/cachekey/v1"
)

// Hash is a lowercase hex SHA-256 digest.
type Hash string

// IsValid reports whether h has the shape of a SHA-256 hex digest.
func (h Hash) IsValid() bool {
	return len(h) == sha256.Size*2
}

// Short returns a truncated prefix for log output.
func (h Hash) Short() string {
	if len(h) < 12 {
		return string(h)
	}
	return string(h[:12])
}

// HashBytes computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data). The null separator prevents
// domain/data boundary ambiguity.
func HashBytes(domain string, data []byte) Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashFields hashes a sequence of fields under one domain, separating
// each field with a null byte so field boundaries cannot be confused.
func HashFields(domain string, fields ...string) Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, f := range fields {
		h.Write([]byte{0x00})
		h.Write([]byte(f))
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashValue hashes the canonical serialization of a cty value.
// Returns an error if the value cannot be canonically marshaled.
func HashValue(domain string, v cty.Value) (Hash, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("HashValue: %w", err)
	}
	return HashBytes(domain, canonical), nil
}
