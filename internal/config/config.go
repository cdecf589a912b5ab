package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigurationError reports a missing required external credential. It is
// fatal: callers must not retry around it.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Name)
}

type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	SignIn   SignInConfig   `yaml:"signIn"`
	RPC      RPCConfig      `yaml:"rpc"`
	State    StateConfig    `yaml:"state"`
	HostUser HostUserConfig `yaml:"hostUser"`
}

type RegistryConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	APIKey      string        `yaml:"apiKey"`
	AppFID      int64         `yaml:"appFid"`
	AppMnemonic string        `yaml:"appMnemonic"`
	Timeout     time.Duration `yaml:"timeout"`

	// Typed-data domain the delegation signature is bound to.
	DomainName        string `yaml:"domainName"`
	DomainVersion     string `yaml:"domainVersion"`
	ChainID           int64  `yaml:"chainId"`
	ValidatorContract string `yaml:"validatorContract"`

	// KeyTTL bounds the delegated key deadline.
	KeyTTL time.Duration `yaml:"keyTtl"`
}

type SignInConfig struct {
	Statement       string `yaml:"statement"`
	ChainID         int64  `yaml:"chainId"`
	CallbackBaseURL string `yaml:"callbackBaseUrl"`
	// OptimisticResume marks a delegation verified when the post-approval
	// status poll fails. Availability over strict correctness; see the
	// resume path in internal/signin.
	OptimisticResume *bool `yaml:"optimisticResume"`
}

type RPCConfig struct {
	Addr           string  `yaml:"addr"`
	RateLimitRPS   float64 `yaml:"rateLimitRps"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
}

type StateConfig struct {
	Path       string `yaml:"path"`
	Passphrase string `yaml:"passphrase"`
}

// HostUserConfig identifies the end user signed into this host instance.
// Guest sign-in is refused while FID is unset.
type HostUserConfig struct {
	FID         int64  `yaml:"fid"`
	Username    string `yaml:"username"`
	DisplayName string `yaml:"displayName"`
	PfpURL      string `yaml:"pfpUrl"`
}

func Default() Config {
	optimistic := true
	return Config{
		Registry: RegistryConfig{
			Timeout:           15 * time.Second,
			DomainName:        "Farcaster SignedKeyRequestValidator",
			DomainVersion:     "1",
			ChainID:           10,
			ValidatorContract: "0x00000000fc700472606ed4fa22623acf62c60553",
			KeyTTL:            24 * time.Hour,
		},
		SignIn: SignInConfig{
			Statement:        "Mini App Auth",
			ChainID:          10,
			OptimisticResume: &optimistic,
		},
		RPC: RPCConfig{
			Addr:           "127.0.0.1:8791",
			RateLimitRPS:   30,
			RateLimitBurst: 60,
		},
	}
}

// LoadFromPath reads yaml config, falling back to candidate paths when no
// explicit path is given, then applies environment overrides. A missing file
// is not an error; defaults plus environment apply.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"go-backend/configs/hostd.yaml",
			"configs/hostd.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src Config) {
	if src.Registry.BaseURL != "" {
		dst.Registry.BaseURL = src.Registry.BaseURL
	}
	if src.Registry.APIKey != "" {
		dst.Registry.APIKey = src.Registry.APIKey
	}
	if src.Registry.AppFID != 0 {
		dst.Registry.AppFID = src.Registry.AppFID
	}
	if src.Registry.AppMnemonic != "" {
		dst.Registry.AppMnemonic = src.Registry.AppMnemonic
	}
	if src.Registry.Timeout != 0 {
		dst.Registry.Timeout = src.Registry.Timeout
	}
	if src.Registry.DomainName != "" {
		dst.Registry.DomainName = src.Registry.DomainName
	}
	if src.Registry.DomainVersion != "" {
		dst.Registry.DomainVersion = src.Registry.DomainVersion
	}
	if src.Registry.ChainID != 0 {
		dst.Registry.ChainID = src.Registry.ChainID
	}
	if src.Registry.ValidatorContract != "" {
		dst.Registry.ValidatorContract = src.Registry.ValidatorContract
	}
	if src.Registry.KeyTTL != 0 {
		dst.Registry.KeyTTL = src.Registry.KeyTTL
	}
	if src.SignIn.Statement != "" {
		dst.SignIn.Statement = src.SignIn.Statement
	}
	if src.SignIn.ChainID != 0 {
		dst.SignIn.ChainID = src.SignIn.ChainID
	}
	if src.SignIn.CallbackBaseURL != "" {
		dst.SignIn.CallbackBaseURL = src.SignIn.CallbackBaseURL
	}
	if src.SignIn.OptimisticResume != nil {
		dst.SignIn.OptimisticResume = src.SignIn.OptimisticResume
	}
	if src.RPC.Addr != "" {
		dst.RPC.Addr = src.RPC.Addr
	}
	if src.RPC.RateLimitRPS != 0 {
		dst.RPC.RateLimitRPS = src.RPC.RateLimitRPS
	}
	if src.RPC.RateLimitBurst != 0 {
		dst.RPC.RateLimitBurst = src.RPC.RateLimitBurst
	}
	if src.State.Path != "" {
		dst.State.Path = src.State.Path
	}
	if src.State.Passphrase != "" {
		dst.State.Passphrase = src.State.Passphrase
	}
	if src.HostUser.FID != 0 {
		dst.HostUser.FID = src.HostUser.FID
	}
	if src.HostUser.Username != "" {
		dst.HostUser.Username = src.HostUser.Username
	}
	if src.HostUser.DisplayName != "" {
		dst.HostUser.DisplayName = src.HostUser.DisplayName
	}
	if src.HostUser.PfpURL != "" {
		dst.HostUser.PfpURL = src.HostUser.PfpURL
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MINIHOST_REGISTRY_BASE_URL")); v != "" {
		cfg.Registry.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MINIHOST_REGISTRY_API_KEY")); v != "" {
		cfg.Registry.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MINIHOST_APP_FID")); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			cfg.Registry.AppFID = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("MINIHOST_APP_MNEMONIC")); v != "" {
		cfg.Registry.AppMnemonic = v
	}
	if v := strings.TrimSpace(os.Getenv("MINIHOST_CALLBACK_BASE_URL")); v != "" {
		cfg.SignIn.CallbackBaseURL = v
	}
	if v, ok := parseBoolEnv("MINIHOST_OPTIMISTIC_RESUME"); ok {
		cfg.SignIn.OptimisticResume = &v
	}
	if v := strings.TrimSpace(os.Getenv("MINIHOST_RPC_ADDR")); v != "" {
		cfg.RPC.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("MINIHOST_STATE_PATH")); v != "" {
		cfg.State.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("MINIHOST_STATE_PASSPHRASE")); v != "" {
		cfg.State.Passphrase = v
	}
	if v := strings.TrimSpace(os.Getenv("MINIHOST_USER_FID")); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			cfg.HostUser.FID = parsed
		}
	}
}

// ValidateRegistry checks the credentials every registry call depends on.
func (c Config) ValidateRegistry() error {
	if strings.TrimSpace(c.Registry.BaseURL) == "" {
		return &ConfigurationError{Name: "registry.baseUrl"}
	}
	if strings.TrimSpace(c.Registry.APIKey) == "" {
		return &ConfigurationError{Name: "registry.apiKey"}
	}
	if c.Registry.AppFID <= 0 {
		return &ConfigurationError{Name: "registry.appFid"}
	}
	if strings.TrimSpace(c.Registry.AppMnemonic) == "" {
		return &ConfigurationError{Name: "registry.appMnemonic"}
	}
	return nil
}

func parseBoolEnv(name string) (bool, bool) {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}
