package api

import (
	"context"
	"net/http"

	"minihost/go-backend/internal/adapters/rpc"
)

// Server fronts the RPC transport for one host service and owns the guest
// bridge's lifecycle: when the transport stops, the bridge closes and any
// guest still waiting on a dispatch resolves with a closed error. Token
// policy lives in the transport.
type Server struct {
	service   *Service
	transport *rpc.Server
}

func NewServerWithService(rpcAddr string, svc *Service) *Server {
	return &Server{service: svc, transport: rpc.NewServerWithService(rpcAddr, svc)}
}

func (s *Server) Run(ctx context.Context) error {
	defer s.service.Close()
	return s.transport.Run(ctx)
}

func (s *Server) HandleRPC(w http.ResponseWriter, r *http.Request) {
	s.transport.HandleRPC(w, r)
}

func (s *Server) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	s.transport.HandleAuthCallback(w, r)
}
