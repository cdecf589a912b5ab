// Package siwe builds sign-in-with-wallet (EIP-4361) challenge messages for
// delegated-key signatures.
package siwe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingNonce   = errors.New("challenge nonce is required")
	ErrMissingDomain  = errors.New("challenge domain is required")
	ErrMissingAddress = errors.New("challenge address is required")
	ErrMissingURI     = errors.New("challenge uri is required")
)

// Message is the structured challenge the delegated key signs. Nonce is
// caller-supplied and mandatory; there is no silent default.
type Message struct {
	Domain    string
	Address   string
	Statement string
	URI       string
	Version   string
	ChainID   int64
	Nonce     string
	IssuedAt  time.Time
	Resources []string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.Nonce) == "" {
		return ErrMissingNonce
	}
	if strings.TrimSpace(m.Domain) == "" {
		return ErrMissingDomain
	}
	if strings.TrimSpace(m.Address) == "" {
		return ErrMissingAddress
	}
	if strings.TrimSpace(m.URI) == "" {
		return ErrMissingURI
	}
	return nil
}

// Prepare renders the canonical EIP-4361 text.
func (m Message) Prepare() (string, error) {
	if err := m.validate(); err != nil {
		return "", err
	}
	version := m.Version
	if version == "" {
		version = "1"
	}
	issuedAt := m.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", m.Domain)
	fmt.Fprintf(&b, "%s\n", m.Address)
	b.WriteString("\n")
	if m.Statement != "" {
		fmt.Fprintf(&b, "%s\n\n", m.Statement)
	}
	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", version)
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", issuedAt.UTC().Format(time.RFC3339))
	if len(m.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range m.Resources {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}
	return b.String(), nil
}
