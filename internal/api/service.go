// Package api composes the host service: the guest-facing bridge plus the
// sign-in orchestrator, presented as one surface the RPC transport serves.
package api

import (
	"context"

	"minihost/go-backend/internal/bridge"
	"minihost/go-backend/internal/signin"
)

// Service binds one guest bridge to the shared sign-in orchestrator.
type Service struct {
	bridge *bridge.Bridge
	signIn *signin.Orchestrator
}

func NewService(b *bridge.Bridge, orch *signin.Orchestrator) *Service {
	return &Service{bridge: b, signIn: orch}
}

func (s *Service) Capabilities() []bridge.Capability {
	return s.bridge.Capabilities()
}

func (s *Service) Chains() []string {
	return s.bridge.Chains()
}

func (s *Service) Context() bridge.GuestContext {
	return s.bridge.Context()
}

func (s *Service) Dispatch(ctx context.Context, req bridge.Request) (any, error) {
	return s.bridge.Dispatch(ctx, req)
}

func (s *Service) EthProviderRequest(ctx context.Context, method string, params []any) (any, error) {
	return s.bridge.EthProviderRequest(ctx, method, params)
}

func (s *Service) ResumeFromApproval(ctx context.Context, ownerID int64, address, token string) error {
	return s.signIn.ResumeFromApproval(ctx, ownerID, address, token)
}

// Close tears the guest bridge down; the orchestrator outlives it.
func (s *Service) Close() {
	s.bridge.Close()
}
