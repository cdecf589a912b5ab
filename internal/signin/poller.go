package signin

import (
	"context"

	"minihost/go-backend/internal/registry"
)

// StatusChecker is the registry read the poller depends on.
type StatusChecker interface {
	CheckStatus(ctx context.Context, address string) (registry.StatusResponse, error)
}

// Poller resolves pending approvals into verified/failed outcomes. It never
// marks verification true on anything but an authoritative approved/active
// status; the optimistic fallback on poll failure belongs to the
// orchestrator's resume path, not here.
type Poller struct {
	registry StatusChecker
}

func NewPoller(statusChecker StatusChecker) *Poller {
	return &Poller{registry: statusChecker}
}

func (p *Poller) Verified(ctx context.Context, address string) (bool, registry.StatusResponse, error) {
	status, err := p.registry.CheckStatus(ctx, address)
	if err != nil {
		return false, registry.StatusResponse{}, err
	}
	return statusIsVerified(status.Status), status, nil
}

// "approved" and "active" are treated equivalently as verified.
func statusIsVerified(status string) bool {
	return status == "approved" || status == "active"
}
