package claim

import (
	"crypto/rand"
	"encoding/hex"
)

// ClaimIDPrefix marks claim identifiers.
const ClaimIDPrefix = "C"

// NewClaimID returns "C" followed by 128 random bits in lowercase hex.
// It panics if the system entropy source fails.
func NewClaimID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("claim: read random: " + err.Error())
	}
	return ClaimIDPrefix + hex.EncodeToString(b[:])
}
