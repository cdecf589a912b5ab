package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"minihost/go-backend/internal/bridge"
	"minihost/go-backend/internal/registry"
	"minihost/go-backend/internal/signin"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 1 << 20 // 1 MiB

// Guest-facing error codes. Everything beyond these arrives as the generic
// host error; registry and orchestrator detail never crosses this boundary.
const (
	codeHostError        = -32040
	codeCapabilityDenied = -32041
	codeProviderMissing  = -32042
	codeRejectedByUser   = -32043
	codeSignInFailed     = -32044
	codeBridgeClosed     = -32045
)

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !s.authorizeRPC(w, r) {
		return
	}
	if !s.rpcLimiter.allow(rpcRateLimitKey(r, s.extractRPCToken(r)), time.Now()) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	if s.service == nil {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32099, Message: "service is not initialized"},
		})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}
	reqID := fmt.Sprintf("rpc_%d", time.Now().UnixNano())
	started := time.Now()
	slog.Default().Info("rpc request", "request_id", reqID, "method", req.Method, "rpc_id", string(req.ID))

	result, rpcErr := s.dispatchRPC(r, req.Method, req.Params)
	if rpcErr != nil {
		slog.Default().Error("rpc failed", "request_id", reqID, "method", req.Method, "rpc_code", rpcErr.Code, "latency_ms", time.Since(started).Milliseconds())
	} else {
		slog.Default().Info("rpc response", "request_id", reqID, "method", req.Method, "latency_ms", time.Since(started).Milliseconds())
	}
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	})
}

func (s *Server) dispatchRPC(r *http.Request, method string, rawParams json.RawMessage) (any, *rpcError) {
	ctx := r.Context()
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil
	case "miniapp_getCapabilities":
		return s.service.Capabilities(), nil
	case "miniapp_getChains":
		return s.service.Chains(), nil
	case "miniapp_getContext":
		return s.service.Context(), nil
	case "miniapp_dispatch":
		var req bridge.Request
		if err := json.Unmarshal(rawParams, &req); err != nil || req.Capability == "" {
			return nil, rpcInvalidParams()
		}
		result, err := s.service.Dispatch(ctx, req)
		if err != nil {
			return nil, mapBridgeError(err)
		}
		return result, nil
	case "miniapp_ethProviderRequest":
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.Unmarshal(rawParams, &req); err != nil || req.Method == "" {
			return nil, rpcInvalidParams()
		}
		result, err := s.service.EthProviderRequest(ctx, req.Method, req.Params)
		if err != nil {
			return nil, mapBridgeError(err)
		}
		return result, nil
	default:
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	}
}

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params"}
}

func mapBridgeError(err error) *rpcError {
	var capErr *bridge.CapabilityError
	switch {
	case errors.As(err, &capErr):
		return &rpcError{Code: codeCapabilityDenied, Message: capErr.Error()}
	case errors.Is(err, bridge.ErrInvalidParams):
		return rpcInvalidParams()
	case errors.Is(err, bridge.ErrProviderUnavailable):
		return &rpcError{Code: codeProviderMissing, Message: err.Error()}
	case errors.Is(err, bridge.ErrRejectedByUser):
		return &rpcError{Code: codeRejectedByUser, Message: err.Error()}
	case errors.Is(err, bridge.ErrSignInFailed):
		return &rpcError{Code: codeSignInFailed, Message: err.Error()}
	case errors.Is(err, bridge.ErrBridgeClosed):
		return &rpcError{Code: codeBridgeClosed, Message: err.Error()}
	default:
		return &rpcError{Code: codeHostError, Message: "host action failed"}
	}
}

func writeCallbackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, signin.ErrResumeMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, signin.ErrNotApproved):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, registry.ErrNotFound):
		http.Error(w, "no pending sign-in for this key", http.StatusNotFound)
	default:
		http.Error(w, "approval callback failed", http.StatusInternalServerError)
	}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: -32600, Message: "invalid request"},
	})
}
