package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewReferralCode derives a shareable referral code from a user's
// name: up to three leading letters of the name, upper-cased, plus a
// random fragment for uniqueness.  The users table enforces
// uniqueness; on the rare collision the caller retries with a fresh
// code.
func NewReferralCode(name string) string {
	prefix := make([]rune, 0, 3)
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			prefix = append(prefix, r)
			if len(prefix) == 3 {
				break
			}
		}
	}
	if len(prefix) == 0 {
		prefix = []rune("REF")
	}
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return string(prefix) + frag
}
