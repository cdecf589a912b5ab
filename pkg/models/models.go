package models

import "time"

// SponsorProof is the co-signature (or registry-sponsorship flag) that
// authorizes a delegation. A proof is either sponsored by the registry
// itself or carries the sponsoring app's fid and signature over the
// delegation signature.
type SponsorProof struct {
	FID                 int64  `json:"fid,omitempty"`
	Signature           string `json:"signature,omitempty"`
	SponsoredByRegistry bool   `json:"sponsored_by_registry"`
}

func (p SponsorProof) WellFormed() bool {
	if p.SponsoredByRegistry {
		return true
	}
	return p.FID > 0 && p.Signature != ""
}

// DelegatedKey is the public half of an ephemeral signing identity granted
// authority to act for an owner. The private material never appears here; it
// stays inside the registry client's vault.
type DelegatedKey struct {
	OwnerID   int64        `json:"owner_id"`
	Address   string       `json:"address"`
	AppFID    int64        `json:"app_fid"`
	Deadline  int64        `json:"deadline"`
	Signature string       `json:"signature"`
	Sponsor   SponsorProof `json:"sponsor"`
}

func (k DelegatedKey) Expired(now time.Time) bool {
	return k.Deadline <= now.Unix()
}

// DelegationRecord is the persisted delegation state for one owner. At most
// one record exists per owner at a time.
type DelegationRecord struct {
	OwnerID   int64        `json:"owner_id"`
	Key       DelegatedKey `json:"key"`
	Verified  bool         `json:"verified"`
	CreatedAt time.Time    `json:"created_at"`
}

// PendingApproval marks a delegation that was submitted to the registry and
// is waiting for out-of-band user approval. Token is a one-time resume token
// carried in the callback locator.
type PendingApproval struct {
	OwnerID   int64     `json:"owner_id"`
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

const AuthMethodAuthAddress = "authAddress"

// SignInResult is produced exactly once per successful sign-in attempt.
type SignInResult struct {
	Signature  string `json:"signature"`
	Message    string `json:"message"`
	AuthMethod string `json:"authMethod"`
}

// HostUser is the host-authenticated end user on whose behalf delegated keys
// act. FID is the owner id.
type HostUser struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PfpURL      string `json:"pfpUrl,omitempty"`
}
