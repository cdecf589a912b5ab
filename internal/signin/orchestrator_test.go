package signin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"minihost/go-backend/internal/registry"
	"minihost/go-backend/pkg/models"
)

type fakeRegistry struct {
	mu           sync.Mutex
	delegations  int
	registers    []registry.RegisterRequest
	registerErrs []error
	approvalURL  string
	status       map[string]string
	statusErr    error
	signErr      error
	forgotten    []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		approvalURL: "https://client.example/approve",
		status:      make(map[string]string),
	}
}

func (f *fakeRegistry) Delegate(ctx context.Context, ownerID int64) (models.DelegatedKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delegations++
	addr := fmt.Sprintf("0x%040d", f.delegations)
	return models.DelegatedKey{
		OwnerID:   ownerID,
		Address:   addr,
		AppFID:    10,
		Deadline:  time.Now().Add(time.Hour).Unix(),
		Signature: fmt.Sprintf("0xdelegation%d", f.delegations),
		Sponsor:   models.SponsorProof{FID: 10, Signature: "0xsponsor"},
	}, nil
}

func (f *fakeRegistry) Register(ctx context.Context, req registry.RegisterRequest) (registry.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers = append(f.registers, req)
	if len(f.registerErrs) > 0 {
		err := f.registerErrs[0]
		f.registerErrs = f.registerErrs[1:]
		if err != nil {
			return registry.RegisterResponse{}, err
		}
	}
	return registry.RegisterResponse{ApprovalURL: f.approvalURL, Status: "pending", Address: req.Address}, nil
}

func (f *fakeRegistry) CheckStatus(ctx context.Context, address string) (registry.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return registry.StatusResponse{}, f.statusErr
	}
	status, ok := f.status[strings.ToLower(address)]
	if !ok {
		status = "pending"
	}
	return registry.StatusResponse{Status: status, Address: address}, nil
}

func (f *fakeRegistry) SignChallenge(ctx context.Context, ownerID int64, address, message string) (registry.SignedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return registry.SignedMessage{}, f.signErr
	}
	return registry.SignedMessage{Signature: "0xsigned", Message: message, Address: address}, nil
}

func (f *fakeRegistry) Forget(ownerID int64, address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, strings.ToLower(address))
}

func (f *fakeRegistry) setStatus(address, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[strings.ToLower(address)] = status
}

func (f *fakeRegistry) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registers)
}

func (f *fakeRegistry) delegationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delegations
}

type capturedApproval struct {
	ownerID     int64
	approvalURL string
}

type fakePresenter struct {
	mu       sync.Mutex
	captured []capturedApproval
}

func (p *fakePresenter) PresentApproval(ownerID int64, approvalURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captured = append(p.captured, capturedApproval{ownerID, approvalURL})
}

func newTestOrchestrator(reg RegistryClient) (*Orchestrator, *MemoryRecordStore, *MemoryPendingStore) {
	records := NewMemoryRecordStore()
	pending := NewMemoryPendingStore()
	orch := New(reg, records, pending, Config{
		Statement:        "Mini App Auth",
		ChainID:          10,
		CallbackBaseURL:  "https://host.example/auth/callback",
		OptimisticResume: true,
		Retry:            DefaultRetryPolicy(),
	})
	return orch, records, pending
}

func testOptions() Options {
	return Options{Nonce: "n-12345678", Domain: "guest.example", URI: "https://guest.example"}
}

func verifiedRecord(ownerID int64, address string) models.DelegationRecord {
	return models.DelegationRecord{
		OwnerID: ownerID,
		Key: models.DelegatedKey{
			OwnerID:   ownerID,
			Address:   address,
			AppFID:    10,
			Deadline:  time.Now().Add(time.Hour).Unix(),
			Signature: "0xdelegation",
			Sponsor:   models.SponsorProof{FID: 10, Signature: "0xsponsor"},
		},
		Verified:  true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSignInFirstTimeEntersPendingApproval(t *testing.T) {
	reg := newFakeRegistry()
	orch, _, pending := newTestOrchestrator(reg)
	presenter := &fakePresenter{}
	orch.SetPresenter(presenter)

	_, err := orch.SignIn(context.Background(), 42, testOptions())
	var pendingErr *PendingApprovalError
	if !errors.As(err, &pendingErr) {
		t.Fatalf("expected *PendingApprovalError, got %v", err)
	}
	if pendingErr.ApprovalURL != reg.approvalURL {
		t.Fatalf("unexpected approval url %q", pendingErr.ApprovalURL)
	}
	if reg.delegationCount() != 1 || reg.registerCount() != 1 {
		t.Fatalf("expected exactly one delegate and one register, got %d/%d", reg.delegationCount(), reg.registerCount())
	}

	marker, ok := pending.Get(42)
	if !ok {
		t.Fatal("pending marker missing")
	}
	if marker.Token == "" {
		t.Fatal("pending marker has no resume token")
	}
	want := fmt.Sprintf("https://host.example/auth/callback?auth_callback=true&fid=42&token=%s", marker.Token)
	if got := reg.registers[0].RedirectURL; got != want {
		t.Fatalf("redirect url %q, want %q", got, want)
	}
	if len(presenter.captured) != 1 || presenter.captured[0].approvalURL != reg.approvalURL {
		t.Fatalf("presenter not invoked correctly: %+v", presenter.captured)
	}
}

func TestSignInRejectsMissingOwner(t *testing.T) {
	reg := newFakeRegistry()
	orch, _, _ := newTestOrchestrator(reg)

	if _, err := orch.SignIn(context.Background(), 0, testOptions()); !errors.Is(err, ErrRejectedByUser) {
		t.Fatalf("expected ErrRejectedByUser, got %v", err)
	}
	if reg.delegationCount() != 0 || reg.registerCount() != 0 {
		t.Fatal("registry must not be touched without an owner")
	}
}

func TestSignInRequiresNonceBeforeAnyNetworkCall(t *testing.T) {
	reg := newFakeRegistry()
	orch, _, _ := newTestOrchestrator(reg)

	_, err := orch.SignIn(context.Background(), 42, Options{Domain: "guest.example", URI: "https://guest.example"})
	var precondErr *PreconditionError
	if !errors.As(err, &precondErr) || precondErr.Field != "nonce" {
		t.Fatalf("expected nonce precondition error, got %v", err)
	}
	if reg.delegationCount() != 0 || reg.registerCount() != 0 {
		t.Fatal("registry must not be touched on precondition failure")
	}
}

func TestSignInVerifiedSignsChallenge(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, _ := newTestOrchestrator(reg)
	rec := verifiedRecord(42, "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	records.Put(rec)
	reg.setStatus(rec.Key.Address, "approved")

	result, err := orch.SignIn(context.Background(), 42, testOptions())
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if result.Signature != "0xsigned" {
		t.Fatalf("unexpected signature %q", result.Signature)
	}
	if result.AuthMethod != models.AuthMethodAuthAddress {
		t.Fatalf("unexpected auth method %q", result.AuthMethod)
	}
	if !strings.Contains(result.Message, "Nonce: n-12345678") {
		t.Fatalf("nonce missing from challenge:\n%s", result.Message)
	}
	if !strings.Contains(result.Message, "- farcaster://fid/42") {
		t.Fatalf("owner resource missing from challenge:\n%s", result.Message)
	}
	// EIP-55 form, not the stored lowercase form.
	if !strings.Contains(result.Message, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359") {
		t.Fatalf("challenge does not carry checksummed address:\n%s", result.Message)
	}
	if reg.registerCount() != 0 {
		t.Fatal("verified delegation must not re-register")
	}
}

func TestSignInStatusActiveCountsAsVerified(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, _ := newTestOrchestrator(reg)
	rec := verifiedRecord(42, "0x00aa000000000000000000000000000000000001")
	records.Put(rec)
	reg.setStatus(rec.Key.Address, "active")

	if _, err := orch.SignIn(context.Background(), 42, testOptions()); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
}

func TestSignInExpiredDelegationRegenerates(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, _ := newTestOrchestrator(reg)
	rec := verifiedRecord(42, "0x00aa000000000000000000000000000000000001")
	rec.Key.Deadline = time.Now().Add(-time.Minute).Unix()
	records.Put(rec)

	_, err := orch.SignIn(context.Background(), 42, testOptions())
	var pendingErr *PendingApprovalError
	if !errors.As(err, &pendingErr) {
		t.Fatalf("expected pending approval after regeneration, got %v", err)
	}
	if reg.delegationCount() != 1 {
		t.Fatalf("expected one fresh delegation, got %d", reg.delegationCount())
	}
	if len(reg.forgotten) != 1 || reg.forgotten[0] != rec.Key.Address {
		t.Fatalf("expired key material not forgotten: %v", reg.forgotten)
	}
	fresh, ok := records.Get(42)
	if !ok || fresh.Key.Address == rec.Key.Address || fresh.Verified {
		t.Fatalf("record not replaced cleanly: %+v", fresh)
	}
}

func TestSignInMalformedSponsorRegenerates(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, _ := newTestOrchestrator(reg)
	rec := verifiedRecord(42, "0x00aa000000000000000000000000000000000001")
	rec.Key.Sponsor = models.SponsorProof{}
	records.Put(rec)

	_, err := orch.SignIn(context.Background(), 42, testOptions())
	var pendingErr *PendingApprovalError
	if !errors.As(err, &pendingErr) {
		t.Fatalf("expected pending approval after regeneration, got %v", err)
	}
	if reg.delegationCount() != 1 {
		t.Fatalf("expected one fresh delegation, got %d", reg.delegationCount())
	}
}

func TestSignInRevokedDelegationReentersApproval(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, _ := newTestOrchestrator(reg)
	rec := verifiedRecord(42, "0x00aa000000000000000000000000000000000001")
	records.Put(rec)
	reg.setStatus(rec.Key.Address, "rejected")

	_, err := orch.SignIn(context.Background(), 42, testOptions())
	var pendingErr *PendingApprovalError
	if !errors.As(err, &pendingErr) {
		t.Fatalf("expected pending approval after revocation, got %v", err)
	}
	stored, ok := records.Get(42)
	if !ok || stored.Verified {
		t.Fatalf("verification flag not cleared: %+v", stored)
	}
}

func TestSignInPollFailureTrustsCachedVerification(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, _ := newTestOrchestrator(reg)
	rec := verifiedRecord(42, "0x00aa000000000000000000000000000000000001")
	records.Put(rec)
	reg.statusErr = errors.New("registry unreachable")

	result, err := orch.SignIn(context.Background(), 42, testOptions())
	if err != nil {
		t.Fatalf("expected cached verification to hold, got %v", err)
	}
	if result.Signature != "0xsigned" {
		t.Fatalf("unexpected signature %q", result.Signature)
	}
	if reg.registerCount() != 0 {
		t.Fatal("poll failure must not force re-registration")
	}
}

func TestSignInDegradedFallbackOnSigningFailure(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, _ := newTestOrchestrator(reg)
	rec := verifiedRecord(42, "0x00aa000000000000000000000000000000000001")
	records.Put(rec)
	reg.setStatus(rec.Key.Address, "approved")
	reg.signErr = errors.New("vault unavailable")

	result, err := orch.SignIn(context.Background(), 42, testOptions())
	if err != nil {
		t.Fatalf("degraded path must not fail: %v", err)
	}
	if result.Signature != rec.Key.Signature {
		t.Fatalf("expected delegation signature fallback, got %q", result.Signature)
	}
	if !strings.Contains(result.Message, "Nonce: n-12345678") {
		t.Fatal("degraded result must still carry the fresh challenge")
	}
}

func TestStaleSignatureRegeneratesExactlyOnce(t *testing.T) {
	staleErr := func() error {
		return &registry.APIError{StatusCode: 400, Code: "InvalidField", Property: "signature", Message: "stale"}
	}

	t.Run("retry succeeds", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.registerErrs = []error{staleErr()}
		orch, _, _ := newTestOrchestrator(reg)

		_, err := orch.SignIn(context.Background(), 42, testOptions())
		var pendingErr *PendingApprovalError
		if !errors.As(err, &pendingErr) {
			t.Fatalf("expected pending approval after retry, got %v", err)
		}
		if reg.delegationCount() != 2 || reg.registerCount() != 2 {
			t.Fatalf("expected regenerate-and-retry once, got %d delegations %d registers", reg.delegationCount(), reg.registerCount())
		}
	})

	t.Run("second rejection is fatal", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.registerErrs = []error{staleErr(), staleErr()}
		orch, _, _ := newTestOrchestrator(reg)

		_, err := orch.SignIn(context.Background(), 42, testOptions())
		var apiErr *registry.APIError
		if !errors.As(err, &apiErr) || apiErr.Property != "signature" {
			t.Fatalf("expected propagated registry error, got %v", err)
		}
		if reg.delegationCount() != 2 || reg.registerCount() != 2 {
			t.Fatalf("retry bound violated: %d delegations %d registers", reg.delegationCount(), reg.registerCount())
		}
	})
}

func TestRegisterNonSignatureErrorPropagatesWithoutRetry(t *testing.T) {
	reg := newFakeRegistry()
	reg.registerErrs = []error{&registry.APIError{StatusCode: 400, Code: "InvalidField", Property: "deadline", Message: "too far"}}
	orch, _, _ := newTestOrchestrator(reg)

	_, err := orch.SignIn(context.Background(), 42, testOptions())
	var apiErr *registry.APIError
	if !errors.As(err, &apiErr) || apiErr.Property != "deadline" {
		t.Fatalf("expected metadata intact, got %v", err)
	}
	if reg.delegationCount() != 1 || reg.registerCount() != 1 {
		t.Fatal("non-signature errors must not trigger regeneration")
	}
}

func TestResumeFromApprovalCompletesSignIn(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, pending := newTestOrchestrator(reg)

	_, err := orch.SignIn(context.Background(), 42, testOptions())
	var pendingErr *PendingApprovalError
	if !errors.As(err, &pendingErr) {
		t.Fatalf("expected pending approval, got %v", err)
	}
	marker, ok := pending.Get(42)
	if !ok {
		t.Fatal("pending marker missing")
	}
	reg.setStatus(marker.Address, "approved")

	if err := orch.ResumeFromApproval(context.Background(), 42, marker.Address, marker.Token); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if _, ok := pending.Get(42); ok {
		t.Fatal("pending marker should be consumed")
	}
	rec, ok := records.Get(42)
	if !ok || !rec.Verified {
		t.Fatalf("record not marked verified: %+v", rec)
	}

	result, err := orch.SignIn(context.Background(), 42, testOptions())
	if err != nil {
		t.Fatalf("post-approval sign-in failed: %v", err)
	}
	if result.Signature != "0xsigned" {
		t.Fatalf("unexpected signature %q", result.Signature)
	}
}

func TestResumeRejectsMismatchedToken(t *testing.T) {
	reg := newFakeRegistry()
	orch, _, pending := newTestOrchestrator(reg)

	_, _ = orch.SignIn(context.Background(), 42, testOptions())
	marker, ok := pending.Get(42)
	if !ok {
		t.Fatal("pending marker missing")
	}

	if err := orch.ResumeFromApproval(context.Background(), 42, marker.Address, "forged"); !errors.Is(err, ErrResumeMismatch) {
		t.Fatalf("expected ErrResumeMismatch, got %v", err)
	}
	if _, ok := pending.Get(42); !ok {
		t.Fatal("mismatched callback must not consume the marker")
	}
}

func TestResumeWithoutApprovedStatus(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, pending := newTestOrchestrator(reg)

	_, _ = orch.SignIn(context.Background(), 42, testOptions())
	marker, _ := pending.Get(42)

	if err := orch.ResumeFromApproval(context.Background(), 42, marker.Address, marker.Token); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	rec, _ := records.Get(42)
	if rec.Verified {
		t.Fatal("unapproved delegation must not become verified")
	}
	if _, ok := pending.Get(42); ok {
		t.Fatal("an authoritative not-approved answer consumes the marker")
	}
}

func TestResumePollFailureFallsBackOptimistically(t *testing.T) {
	reg := newFakeRegistry()
	orch, records, pending := newTestOrchestrator(reg)

	_, _ = orch.SignIn(context.Background(), 42, testOptions())
	marker, _ := pending.Get(42)
	reg.statusErr = errors.New("registry unreachable")

	if err := orch.ResumeFromApproval(context.Background(), 42, marker.Address, marker.Token); err != nil {
		t.Fatalf("optimistic resume failed: %v", err)
	}
	rec, _ := records.Get(42)
	if !rec.Verified {
		t.Fatal("optimistic resume must mark the record verified")
	}
}

func TestResumePollFailureStrictMode(t *testing.T) {
	reg := newFakeRegistry()
	records := NewMemoryRecordStore()
	pending := NewMemoryPendingStore()
	orch := New(reg, records, pending, Config{
		Statement:       "Mini App Auth",
		ChainID:         10,
		CallbackBaseURL: "https://host.example/auth/callback",
		Retry:           DefaultRetryPolicy(),
	})

	_, _ = orch.SignIn(context.Background(), 42, testOptions())
	marker, _ := pending.Get(42)
	pollErr := errors.New("registry unreachable")
	reg.statusErr = pollErr

	if err := orch.ResumeFromApproval(context.Background(), 42, marker.Address, marker.Token); !errors.Is(err, pollErr) {
		t.Fatalf("strict mode must propagate the poll error, got %v", err)
	}
	rec, _ := records.Get(42)
	if rec.Verified {
		t.Fatal("strict mode must not mark the record verified")
	}
	if _, ok := pending.Get(42); !ok {
		t.Fatal("a transient poll failure must not consume the marker")
	}

	// Once the registry answers, the same callback redeems the token.
	reg.statusErr = nil
	reg.setStatus(marker.Address, "approved")
	if err := orch.ResumeFromApproval(context.Background(), 42, marker.Address, marker.Token); err != nil {
		t.Fatalf("retried resume failed: %v", err)
	}
	if _, ok := pending.Get(42); ok {
		t.Fatal("successful resume should consume the marker")
	}
	rec, _ = records.Get(42)
	if !rec.Verified {
		t.Fatal("retried resume must mark the record verified")
	}
}

func TestPersistHookRunsOnStateChanges(t *testing.T) {
	reg := newFakeRegistry()
	orch, _, pending := newTestOrchestrator(reg)
	var persists int
	orch.SetPersist(func() error {
		persists++
		return nil
	})

	_, _ = orch.SignIn(context.Background(), 42, testOptions())
	if persists == 0 {
		t.Fatal("fresh delegation must persist state")
	}
	before := persists

	marker, _ := pending.Get(42)
	reg.setStatus(marker.Address, "approved")
	if err := orch.ResumeFromApproval(context.Background(), 42, marker.Address, marker.Token); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if persists <= before {
		t.Fatal("verification must persist state")
	}
}
