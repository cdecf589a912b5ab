// Package hostservice assembles the runtime object graph: config, key
// vault, registry client, sign-in orchestrator, guest bridge.
package hostservice

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"minihost/go-backend/internal/api"
	"minihost/go-backend/internal/bridge"
	"minihost/go-backend/internal/config"
	"minihost/go-backend/internal/registry"
	"minihost/go-backend/internal/signin"
	"minihost/go-backend/pkg/models"
)

func BuildHostService(configPath, dataDir string) (*api.Service, error) {
	cfg := config.LoadFromPath(configPath)
	if err := cfg.ValidateRegistry(); err != nil {
		return nil, err
	}

	vault := registry.NewMemoryVault()
	client, err := registry.NewClient(cfg, vault)
	if err != nil {
		return nil, err
	}

	records := signin.NewMemoryRecordStore()
	pending := signin.NewMemoryPendingStore()

	optimistic := true
	if cfg.SignIn.OptimisticResume != nil {
		optimistic = *cfg.SignIn.OptimisticResume
	}
	orch := signin.New(client, records, pending, signin.Config{
		Statement:        cfg.SignIn.Statement,
		ChainID:          cfg.SignIn.ChainID,
		CallbackBaseURL:  cfg.SignIn.CallbackBaseURL,
		OptimisticResume: optimistic,
		Retry:            signin.DefaultRetryPolicy(),
	})
	orch.SetMetrics(signin.NewMetrics(prometheus.DefaultRegisterer))
	orch.SetPresenter(logPresenter{})

	if statePath, passphrase := resolveStateLocation(cfg, dataDir); statePath != "" && passphrase != "" {
		store := signin.NewStateStore(statePath, passphrase)
		if err := store.Bootstrap(records); err != nil {
			return nil, err
		}
		orch.SetPersist(func() error { return store.Persist(records) })
	}

	hostUser := cfg.HostUser
	b := bridge.New(bridge.Setup{
		Actions: defaultActions(),
		SignIn:  orch,
		CurrentUser: func() (models.HostUser, bool) {
			if hostUser.FID <= 0 {
				return models.HostUser{}, false
			}
			return models.HostUser{
				FID:         hostUser.FID,
				Username:    hostUser.Username,
				DisplayName: hostUser.DisplayName,
				PfpURL:      hostUser.PfpURL,
			}, true
		},
		GuestDomain: strings.TrimSpace(os.Getenv("MINIHOST_GUEST_DOMAIN")),
		GuestOrigin: strings.TrimSpace(os.Getenv("MINIHOST_GUEST_ORIGIN")),
		ClientFID:   cfg.Registry.AppFID,
	})

	return api.NewService(b, orch), nil
}

// resolveStateLocation prefers the explicit state path; otherwise encrypted
// delegation state lives under the data dir.
func resolveStateLocation(cfg config.Config, dataDir string) (string, string) {
	statePath := strings.TrimSpace(cfg.State.Path)
	if statePath == "" && strings.TrimSpace(dataDir) != "" {
		statePath = filepath.Join(dataDir, "delegations.enc")
	}
	return statePath, strings.TrimSpace(cfg.State.Passphrase)
}
