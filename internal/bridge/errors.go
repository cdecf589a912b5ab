package bridge

import (
	"errors"
	"fmt"

	"minihost/go-backend/internal/signin"
)

var (
	// ErrProviderUnavailable: no wallet provider is configured; the bridge
	// never fabricates wallet responses.
	ErrProviderUnavailable = errors.New("wallet provider is not available")
	// ErrBridgeClosed is the cancellation error for calls caught by or
	// arriving after host-initiated teardown.
	ErrBridgeClosed = errors.New("bridge is closed")
	// ErrSignInFailed is the normalized sign-in failure crossing the guest
	// boundary. Internal detail stays on the host side of the bridge.
	ErrSignInFailed = errors.New("sign-in failed")
	// ErrRejectedByUser is re-exported so guests keep seeing the one
	// whitelisted orchestrator error unchanged.
	ErrRejectedByUser = signin.ErrRejectedByUser
	// ErrInvalidParams covers guest params that do not decode into the
	// capability's declared shape.
	ErrInvalidParams = errors.New("invalid capability params")
)

// CapabilityError reports a request for a capability absent from the
// advertised manifest.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability not supported: %s", e.Capability)
}

// normalizeSignInError maps orchestrator failures onto the guest contract:
// RejectedByUser passes through verbatim, everything else collapses to the
// generic failure so registry diagnostics never leak into the sandbox.
func normalizeSignInError(err error) error {
	if errors.Is(err, signin.ErrRejectedByUser) {
		return err
	}
	return ErrSignInFailed
}
