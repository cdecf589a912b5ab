// Package bridge mediates every call an embedded, untrusted guest makes
// against the host. Guests only ever see the advertised capability set,
// normalized errors, and derived signatures; host secrets and registry
// diagnostics stay on this side of the boundary.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"minihost/go-backend/internal/signin"
	"minihost/go-backend/pkg/models"
)

// Provider is the opaque wallet-extension passthrough.
type Provider interface {
	Request(ctx context.Context, method string, params []any) (any, error)
}

// SignInService is the orchestrator as seen from the bridge.
type SignInService interface {
	SignIn(ctx context.Context, ownerID int64, opts signin.Options) (models.SignInResult, error)
}

// HostActions are the host's implementations, one per capability. A nil
// field removes the capability from the advertised manifest.
type HostActions struct {
	Ready                func(ctx context.Context, opts ReadyOptions) error
	OpenURL              func(ctx context.Context, opts OpenURLOptions) error
	Close                func(ctx context.Context) error
	SetPrimaryButton     func(ctx context.Context, opts SetPrimaryButtonOptions) error
	ViewCast             func(ctx context.Context, opts ViewCastOptions) error
	ViewProfile          func(ctx context.Context, opts ViewProfileOptions) error
	ComposeCast          func(ctx context.Context, opts ComposeCastOptions) (ComposeCastResult, error)
	ViewToken            func(ctx context.Context, opts ViewTokenOptions) error
	SendToken            func(ctx context.Context, opts SendTokenOptions) (TokenActionResult, error)
	SwapToken            func(ctx context.Context, opts SwapTokenOptions) (TokenActionResult, error)
	OpenMiniApp          func(ctx context.Context, opts OpenMiniAppOptions) error
	CameraAndMicAccess   func(ctx context.Context) error
	ImpactOccurred       func(ctx context.Context, opts ImpactOccurredOptions) error
	NotificationOccurred func(ctx context.Context, opts NotificationOccurredOptions) error
	SelectionChanged     func(ctx context.Context) error
	UpdateBackState      func(ctx context.Context, opts BackStateOptions) error
}

// Setup wires a bridge instance for one guest frame.
type Setup struct {
	Actions HostActions
	// Capabilities restricts the advertised manifest; nil means the full
	// default order. Entries without a host action are filtered out.
	Capabilities []Capability
	Provider     Provider
	SignIn       SignInService
	// CurrentUser reports the host-authenticated end user; a guest signIn
	// without one is rejected before any network call.
	CurrentUser func() (models.HostUser, bool)
	GuestDomain string
	GuestOrigin string
	ClientFID   int64
	Chains      []string
}

// Request is the tagged guest request: one variant per capability, decoded
// against that capability's parameter shape at dispatch time.
type Request struct {
	Capability Capability      `json:"capability"`
	Params     json.RawMessage `json:"params"`
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

type Bridge struct {
	actions     HostActions
	caps        []Capability
	capSet      map[Capability]struct{}
	handlers    map[Capability]handlerFunc
	provider    Provider
	signIn      SignInService
	currentUser func() (models.HostUser, bool)
	guestDomain string
	guestOrigin string
	clientFID   int64
	chains      []string
	log         *slog.Logger

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

func New(setup Setup) *Bridge {
	b := &Bridge{
		actions:     setup.Actions,
		provider:    setup.Provider,
		signIn:      setup.SignIn,
		currentUser: setup.CurrentUser,
		guestDomain: setup.GuestDomain,
		guestOrigin: setup.GuestOrigin,
		clientFID:   setup.ClientFID,
		chains:      append([]string(nil), setup.Chains...),
		log:         slog.Default(),
		closeCh:     make(chan struct{}),
	}
	if len(b.chains) == 0 {
		b.chains = []string{"eip155:1"}
	}
	b.handlers = b.buildHandlers()

	requested := setup.Capabilities
	if requested == nil {
		requested = DefaultCapabilities()
	}
	b.capSet = make(map[Capability]struct{})
	for _, cap := range requested {
		if _, ok := b.handlers[cap]; !ok {
			continue
		}
		if _, dup := b.capSet[cap]; dup {
			continue
		}
		b.capSet[cap] = struct{}{}
		b.caps = append(b.caps, cap)
	}
	return b
}

// Capabilities returns the advertised manifest: same ordered set on every
// call for the lifetime of the bridge.
func (b *Bridge) Capabilities() []Capability {
	return append([]Capability(nil), b.caps...)
}

func (b *Bridge) Chains() []string {
	return append([]string(nil), b.chains...)
}

// Context is the host document a guest reads before calling anything.
func (b *Bridge) Context() GuestContext {
	ctx := GuestContext{
		Client: GuestClient{ClientFID: b.clientFID, PlatformType: "web"},
		Features: GuestFeatures{
			Haptics:                   b.actions.ImpactOccurred != nil,
			CameraAndMicrophoneAccess: b.actions.CameraAndMicAccess != nil,
		},
	}
	if b.currentUser != nil {
		if user, ok := b.currentUser(); ok {
			ctx.User = GuestUser{
				FID:         user.FID,
				Username:    user.Username,
				DisplayName: user.DisplayName,
				PfpURL:      user.PfpURL,
			}
		}
	}
	return ctx
}

// Dispatch routes one guest request. Membership in the advertised manifest
// is enforced here, not trusted from the guest; unknown or filtered
// capabilities fail with CapabilityError instead of crashing the bridge.
func (b *Bridge) Dispatch(ctx context.Context, req Request) (any, error) {
	if b.isClosed() {
		return nil, ErrBridgeClosed
	}
	if _, ok := b.capSet[req.Capability]; !ok {
		return nil, &CapabilityError{Capability: req.Capability}
	}
	handler := b.handlers[req.Capability]
	return b.await(ctx, func(ctx context.Context) (any, error) {
		return handler(ctx, req.Params)
	})
}

// EthProviderRequest forwards a wallet RPC verbatim to the configured
// provider. The bridge never fabricates wallet responses.
func (b *Bridge) EthProviderRequest(ctx context.Context, method string, params []any) (any, error) {
	if b.isClosed() {
		return nil, ErrBridgeClosed
	}
	if b.provider == nil {
		return nil, ErrProviderUnavailable
	}
	return b.await(ctx, func(ctx context.Context) (any, error) {
		return b.provider.Request(ctx, method, params)
	})
}

// Close synchronously stops forwarding guest calls. In-flight calls resolve
// with a cancellation error; the underlying network requests are left to
// their own contexts.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.closeCh)
}

func (b *Bridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// await resolves fn's result, or rejects the waiting guest with
// ErrBridgeClosed on teardown. Teardown does not abort the call itself:
// work already handed to the host or the registry keeps its own context
// and runs to completion.
func (b *Bridge) await(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := fn(ctx)
		done <- outcome{result: result, err: err}
	}()
	select {
	case out := <-done:
		return out.result, out.err
	case <-b.closeCh:
		return nil, ErrBridgeClosed
	}
}

func (b *Bridge) buildHandlers() map[Capability]handlerFunc {
	handlers := make(map[Capability]handlerFunc)

	if b.actions.Ready != nil {
		handlers[CapReady] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts ReadyOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			return nil, b.actions.Ready(ctx, opts)
		}
	}
	if b.actions.OpenURL != nil {
		handlers[CapOpenURL] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts OpenURLOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			if strings.TrimSpace(opts.URL) == "" {
				return nil, ErrInvalidParams
			}
			return nil, b.actions.OpenURL(ctx, opts)
		}
	}
	if b.actions.Close != nil {
		handlers[CapClose] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			return nil, b.actions.Close(ctx)
		}
	}
	if b.actions.SetPrimaryButton != nil {
		handlers[CapSetPrimaryButton] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts SetPrimaryButtonOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			return nil, b.actions.SetPrimaryButton(ctx, opts)
		}
	}
	if b.signIn != nil && b.currentUser != nil {
		handlers[CapSignIn] = b.handleSignIn
	}
	if b.actions.ViewCast != nil {
		handlers[CapViewCast] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts ViewCastOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			if strings.TrimSpace(opts.Hash) == "" {
				return nil, ErrInvalidParams
			}
			return nil, b.actions.ViewCast(ctx, opts)
		}
	}
	if b.actions.ViewProfile != nil {
		handlers[CapViewProfile] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts ViewProfileOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			if opts.FID <= 0 {
				return nil, ErrInvalidParams
			}
			return nil, b.actions.ViewProfile(ctx, opts)
		}
	}
	if b.actions.ComposeCast != nil {
		handlers[CapComposeCast] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts ComposeCastOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			result, err := b.actions.ComposeCast(ctx, opts)
			if err != nil {
				return nil, err
			}
			if opts.CloseApp {
				return nil, nil
			}
			return result, nil
		}
	}
	if b.actions.ViewToken != nil {
		handlers[CapViewToken] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts ViewTokenOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			return nil, b.actions.ViewToken(ctx, opts)
		}
	}
	if b.actions.SendToken != nil {
		handlers[CapSendToken] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts SendTokenOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			return b.actions.SendToken(ctx, opts)
		}
	}
	if b.actions.SwapToken != nil {
		handlers[CapSwapToken] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts SwapTokenOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			return b.actions.SwapToken(ctx, opts)
		}
	}
	if b.actions.OpenMiniApp != nil {
		handlers[CapOpenMiniApp] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts OpenMiniAppOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			if strings.TrimSpace(opts.URL) == "" {
				return nil, ErrInvalidParams
			}
			return nil, b.actions.OpenMiniApp(ctx, opts)
		}
	}
	if b.actions.CameraAndMicAccess != nil {
		handlers[CapCameraAndMic] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			return nil, b.actions.CameraAndMicAccess(ctx)
		}
	}
	if b.actions.ImpactOccurred != nil {
		handlers[CapHapticsImpact] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts ImpactOccurredOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			return nil, b.actions.ImpactOccurred(ctx, opts)
		}
	}
	if b.actions.NotificationOccurred != nil {
		handlers[CapHapticsNotify] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts NotificationOccurredOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			return nil, b.actions.NotificationOccurred(ctx, opts)
		}
	}
	if b.actions.SelectionChanged != nil {
		handlers[CapHapticsSelection] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			return nil, b.actions.SelectionChanged(ctx)
		}
	}
	if b.actions.UpdateBackState != nil {
		handlers[CapBack] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts BackStateOptions
			if err := decodeParams(raw, &opts); err != nil {
				return nil, err
			}
			return nil, b.actions.UpdateBackState(ctx, opts)
		}
	}
	return handlers
}

func (b *Bridge) handleSignIn(ctx context.Context, raw json.RawMessage) (any, error) {
	var opts SignInOptions
	if err := decodeParams(raw, &opts); err != nil {
		return nil, err
	}
	user, ok := b.currentUser()
	if !ok || user.FID <= 0 {
		return nil, ErrRejectedByUser
	}
	result, err := b.signIn.SignIn(ctx, user.FID, signin.Options{
		Nonce:  opts.Nonce,
		Domain: b.guestDomain,
		URI:    b.guestOrigin,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b.log.Warn("guest sign-in did not complete", "error", err)
		return nil, normalizeSignInError(err)
	}
	return result, nil
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidParams
	}
	return nil
}
