package registry

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"minihost/go-backend/internal/config"
)

const maxErrorBodyBytes = 64 * 1024

// Client is the typed client for the external Key Registry Service. Two
// operations go over the wire (Register, CheckStatus); Delegate and
// SignChallenge are local key operations backed by the vault.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	appFID int64
	appKey *ecdsa.PrivateKey

	domainName        string
	domainVersion     string
	chainID           int64
	validatorContract string
	keyTTL            time.Duration

	vault Vault
	now   func() time.Time
}

func NewClient(cfg config.Config, vault Vault) (*Client, error) {
	if err := cfg.ValidateRegistry(); err != nil {
		return nil, err
	}
	appKey, _, err := accountFromMnemonic(cfg.Registry.AppMnemonic)
	if err != nil {
		return nil, fmt.Errorf("app mnemonic: %w", err)
	}
	if vault == nil {
		vault = NewMemoryVault()
	}
	return &Client{
		httpClient:        &http.Client{Timeout: cfg.Registry.Timeout},
		baseURL:           strings.TrimRight(cfg.Registry.BaseURL, "/"),
		apiKey:            cfg.Registry.APIKey,
		appFID:            cfg.Registry.AppFID,
		appKey:            appKey,
		domainName:        cfg.Registry.DomainName,
		domainVersion:     cfg.Registry.DomainVersion,
		chainID:           cfg.Registry.ChainID,
		validatorContract: cfg.Registry.ValidatorContract,
		keyTTL:            cfg.Registry.KeyTTL,
		vault:             vault,
		now:               time.Now,
	}, nil
}

// Register submits a delegation for out-of-band user approval. The registry
// answers with one of several approval-URL aliases; the first non-empty one
// wins.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return RegisterResponse{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/signed_key", bytes.NewReader(payload))
	if err != nil {
		return RegisterResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return RegisterResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return RegisterResponse{}, decodeAPIError(resp)
	}

	var body struct {
		Status                 string `json:"status"`
		Address                string `json:"address"`
		AuthAddressApprovalURL string `json:"auth_address_approval_url"`
		RedirectURL            string `json:"redirect_url"`
		URL                    string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return RegisterResponse{}, fmt.Errorf("decode register response: %w", err)
	}
	approvalURL := firstNonEmpty(body.AuthAddressApprovalURL, body.RedirectURL, body.URL)
	if approvalURL == "" {
		return RegisterResponse{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "registry returned no approval url",
		}
	}
	return RegisterResponse{
		ApprovalURL: approvalURL,
		Status:      body.Status,
		Address:     body.Address,
	}, nil
}

// CheckStatus is a pure read of the delegation's approval state.
func (c *Client) CheckStatus(ctx context.Context, address string) (StatusResponse, error) {
	endpoint := c.baseURL + "?address=" + url.QueryEscape(strings.TrimSpace(address))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StatusResponse{}, err
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return StatusResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusResponse{}, decodeAPIError(resp)
	}

	var body struct {
		Status                 string `json:"status"`
		Address                string `json:"address"`
		FID                    int64  `json:"fid"`
		AuthAddressApprovalURL string `json:"auth_address_approval_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return StatusResponse{}, fmt.Errorf("decode status response: %w", err)
	}
	return StatusResponse{
		Status:      body.Status,
		Address:     body.Address,
		FID:         body.FID,
		ApprovalURL: body.AuthAddressApprovalURL,
	}, nil
}

// decodeAPIError keeps the registry's code/property/message metadata intact
// for the orchestrator's diagnostics and retry decisions.
func decodeAPIError(resp *http.Response) *APIError {
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       raw,
	}
	if readErr != nil {
		apiErr.Message = "failed to read error response"
		return apiErr
	}
	var parsed struct {
		Code     string `json:"code"`
		Property string `json:"property"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Property = parsed.Property
		apiErr.Message = parsed.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
