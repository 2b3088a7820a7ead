package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SourceHashPolicy computes the dedupe hash of an ingested judgment.
// Same source text (modulo surrounding whitespace and line endings) -> same hash.
type SourceHashPolicy interface {
	Compute(body string) string
}

type sourceHashPolicy struct{}

// NewSourceHashPolicy creates a new instance of the default SourceHashPolicy.
func NewSourceHashPolicy() SourceHashPolicy {
	return &sourceHashPolicy{}
}

// Compute returns the hex SHA-256 of the normalized body.
func (p *sourceHashPolicy) Compute(body string) string {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.TrimSpace(normalized)

	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}
