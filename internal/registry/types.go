package registry

import (
	"errors"
	"fmt"

	"minihost/go-backend/pkg/models"
)

// ErrNotFound is returned when no delegated key material exists for the
// requested owner/address pair.
var ErrNotFound = errors.New("delegation not found")

// APIError preserves the registry's own diagnostics (HTTP status, error
// code, offending field) for upstream callers. The bridge strips it before
// anything reaches a guest.
type APIError struct {
	StatusCode int
	Code       string
	Property   string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("registry error (status %d, code %s, property %s): %s", e.StatusCode, e.Code, e.Property, e.Message)
	}
	return fmt.Sprintf("registry error (status %d): %s", e.StatusCode, e.Message)
}

// IsInvalidSignature reports whether err is the registry's field-level
// rejection of the delegation signature. This is the one case the
// orchestrator may answer with a regenerate-and-retry.
func IsInvalidSignature(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == "InvalidField" && apiErr.Property == "signature"
}

type RegisterRequest struct {
	Address     string              `json:"address"`
	AppFID      int64               `json:"app_fid"`
	Deadline    int64               `json:"deadline"`
	Signature   string              `json:"signature"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	Sponsor     models.SponsorProof `json:"sponsor"`
}

type RegisterResponse struct {
	ApprovalURL string `json:"approval_url"`
	Status      string `json:"status"`
	Address     string `json:"address"`
}

type StatusResponse struct {
	Status      string `json:"status"`
	Address     string `json:"address"`
	FID         int64  `json:"fid"`
	ApprovalURL string `json:"approval_url"`
}

// SignedMessage is the result of signing a challenge with a delegated key.
type SignedMessage struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
	Address   string `json:"address"`
}
