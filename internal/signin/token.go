package signin

import (
	"crypto/rand"

	"github.com/mr-tron/base58"
)

const resumeTokenBytes = 16

// newResumeToken mints the one-time token bound to a pending approval. The
// callback locator carries it back so a forged callback cannot resume
// another owner's sign-in.
func newResumeToken() (string, error) {
	raw := make([]byte, resumeTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}
