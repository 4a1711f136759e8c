package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	subscriberIDPrefix  = "subscriber."
	subscriberHashChars = 24
)

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DeriveSubscriberID returns the stable document id for an email address.
// Addresses that differ only by case or surrounding whitespace share an id.
func DeriveSubscriberID(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return subscriberIDPrefix + hex.EncodeToString(sum[:])[:subscriberHashChars]
}
