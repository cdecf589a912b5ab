package hostserver

import (
	"minihost/go-backend/internal/api"
	"minihost/go-backend/internal/composition/hostservice"
)

// NewRPCServerWithOptions wires the host service behind the api server,
// which fronts the RPC transport and closes the guest bridge on shutdown.
func NewRPCServerWithOptions(rpcAddr, configPath, dataDir string) (*api.Server, error) {
	svc, err := hostservice.BuildHostService(configPath, dataDir)
	if err != nil {
		return nil, err
	}
	return api.NewServerWithService(rpcAddr, svc), nil
}
