package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"minihost/go-backend/internal/registry"
	"minihost/go-backend/internal/siwe"
	"minihost/go-backend/pkg/models"
)

// ErrNotApproved is returned by ResumeFromApproval when the registry
// answered authoritatively and the delegation is still not approved.
var ErrNotApproved = errors.New("delegation is not approved")

// RegistryClient is the orchestrator-side view of the key registry.
type RegistryClient interface {
	Delegate(ctx context.Context, ownerID int64) (models.DelegatedKey, error)
	Register(ctx context.Context, req registry.RegisterRequest) (registry.RegisterResponse, error)
	CheckStatus(ctx context.Context, address string) (registry.StatusResponse, error)
	SignChallenge(ctx context.Context, ownerID int64, address, message string) (registry.SignedMessage, error)
	Forget(ownerID int64, address string)
}

// ApprovalPresenter receives the approval URL for out-of-band display, e.g.
// a QR presenter. Display itself is outside this package.
type ApprovalPresenter interface {
	PresentApproval(ownerID int64, approvalURL string)
}

// Options are the caller-supplied challenge fields. Nonce is mandatory.
type Options struct {
	Nonce  string
	Domain string
	URI    string
}

type Config struct {
	Statement       string
	ChainID         int64
	CallbackBaseURL string
	// OptimisticResume marks a delegation verified when the post-approval
	// status poll fails. Trades strict correctness for not locking the user
	// out of a plausibly-approved session.
	OptimisticResume bool
	Retry            RetryPolicy
}

// Orchestrator drives the delegation state machine per owner. It is the only
// mutator of the record and pending stores; per-owner flows are serialized so
// a second concurrent sign-in queues behind the first.
type Orchestrator struct {
	registry  RegistryClient
	records   RecordStore
	pending   PendingStore
	poller    *Poller
	presenter ApprovalPresenter
	persist   func() error
	metrics   *Metrics
	cfg       Config
	now       func() time.Time
	flights   ownerFlights
	log       *slog.Logger
}

func New(reg RegistryClient, records RecordStore, pending PendingStore, cfg Config) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		records:  records,
		pending:  pending,
		poller:   NewPoller(reg),
		cfg:      cfg,
		now:      time.Now,
		log:      slog.Default(),
	}
}

func (o *Orchestrator) SetPresenter(p ApprovalPresenter) { o.presenter = p }
func (o *Orchestrator) SetPersist(fn func() error)       { o.persist = fn }
func (o *Orchestrator) SetMetrics(m *Metrics)            { o.metrics = m }

// SignIn runs one pass of the delegation state machine for the owner and
// either returns a signed challenge or a typed rejection. It never blocks on
// out-of-band approval: a submitted delegation surfaces as
// *PendingApprovalError and the caller retries after the user confirms.
func (o *Orchestrator) SignIn(ctx context.Context, ownerID int64, opts Options) (models.SignInResult, error) {
	if ownerID <= 0 {
		o.metrics.outcome(outcomeRejected)
		return models.SignInResult{}, ErrRejectedByUser
	}
	if strings.TrimSpace(opts.Nonce) == "" {
		o.metrics.outcome(outcomeError)
		return models.SignInResult{}, &PreconditionError{Field: "nonce"}
	}

	unlock := o.flights.lock(ownerID)
	defer unlock()

	rec, err := o.currentDelegation(ctx, ownerID)
	if err != nil {
		o.metrics.outcome(outcomeError)
		return models.SignInResult{}, err
	}

	verified := rec.Verified
	if verified {
		// A previously verified delegation can be revoked out-of-band, so
		// the cached flag is only trusted after an authoritative re-check.
		ok, status, pollErr := o.poller.Verified(ctx, rec.Key.Address)
		o.metrics.registryCall("check_status", pollErr)
		switch {
		case pollErr != nil:
			o.log.Warn("delegation status re-check failed; trusting cached verification",
				"owner_id", ownerID, "error", pollErr)
		case !ok:
			o.log.Info("delegation no longer approved; clearing verification",
				"owner_id", ownerID, "status", status.Status)
			verified = false
			rec.Verified = false
			o.records.Put(rec)
			o.persistRecords()
		}
	}

	if verified {
		return o.signChallenge(ctx, ownerID, rec, opts)
	}
	return o.registerForApproval(ctx, ownerID, rec)
}

// currentDelegation returns a usable delegation record for the owner,
// regenerating when none exists, the deadline passed, or the sponsor proof
// is malformed. Expired keys are never reused.
func (o *Orchestrator) currentDelegation(ctx context.Context, ownerID int64) (models.DelegationRecord, error) {
	rec, ok := o.records.Get(ownerID)
	if ok && !rec.Key.Expired(o.now()) && rec.Key.Sponsor.WellFormed() {
		return rec, nil
	}
	if ok {
		o.discardDelegation(rec)
	}
	return o.freshDelegation(ctx, ownerID)
}

func (o *Orchestrator) freshDelegation(ctx context.Context, ownerID int64) (models.DelegationRecord, error) {
	key, err := o.registry.Delegate(ctx, ownerID)
	o.metrics.registryCall("delegate", err)
	if err != nil {
		return models.DelegationRecord{}, err
	}
	rec := models.DelegationRecord{
		OwnerID:   ownerID,
		Key:       key,
		Verified:  false,
		CreatedAt: o.now().UTC(),
	}
	o.records.Put(rec)
	o.persistRecords()
	return rec, nil
}

func (o *Orchestrator) discardDelegation(rec models.DelegationRecord) {
	o.registry.Forget(rec.OwnerID, rec.Key.Address)
	o.records.Delete(rec.OwnerID)
}

func (o *Orchestrator) signChallenge(ctx context.Context, ownerID int64, rec models.DelegationRecord, opts Options) (models.SignInResult, error) {
	address := registry.ChecksumAddress(rec.Key.Address)
	message, err := siwe.Message{
		Domain:    opts.Domain,
		Address:   address,
		Statement: o.cfg.Statement,
		URI:       opts.URI,
		ChainID:   o.cfg.ChainID,
		Nonce:     opts.Nonce,
		IssuedAt:  o.now(),
		Resources: []string{fmt.Sprintf("farcaster://fid/%d", ownerID)},
	}.Prepare()
	if err != nil {
		o.metrics.outcome(outcomeError)
		return models.SignInResult{}, &PreconditionError{Field: missingChallengeField(err)}
	}

	signed, err := o.registry.SignChallenge(ctx, ownerID, address, message)
	o.metrics.registryCall("sign", err)
	if err != nil {
		// Degraded success: hand back the original delegation signature with
		// the fresh challenge text instead of failing the whole flow.
		o.log.Warn("challenge signing failed; returning delegation signature",
			"owner_id", ownerID, "error", err)
		o.metrics.outcome(outcomeDegraded)
		return models.SignInResult{
			Signature:  rec.Key.Signature,
			Message:    message,
			AuthMethod: models.AuthMethodAuthAddress,
		}, nil
	}
	o.metrics.outcome(outcomeSigned)
	return models.SignInResult{
		Signature:  signed.Signature,
		Message:    signed.Message,
		AuthMethod: models.AuthMethodAuthAddress,
	}, nil
}

// registerForApproval submits the delegation to the registry. A stale
// delegation signature is answered with a bounded regenerate-and-retry; any
// other failure propagates with the registry's metadata intact.
func (o *Orchestrator) registerForApproval(ctx context.Context, ownerID int64, rec models.DelegationRecord) (models.SignInResult, error) {
	token, err := newResumeToken()
	if err != nil {
		o.metrics.outcome(outcomeError)
		return models.SignInResult{}, err
	}

	regenerations := 0
	for {
		resp, err := o.registry.Register(ctx, o.registerRequest(rec.Key, ownerID, token))
		o.metrics.registryCall("register", err)
		if err == nil {
			o.pending.Put(models.PendingApproval{
				OwnerID:   ownerID,
				Address:   rec.Key.Address,
				Token:     token,
				CreatedAt: o.now().UTC(),
			})
			if o.presenter != nil {
				o.presenter.PresentApproval(ownerID, resp.ApprovalURL)
			}
			o.metrics.outcome(outcomePending)
			return models.SignInResult{}, &PendingApprovalError{ApprovalURL: resp.ApprovalURL}
		}
		if registry.IsInvalidSignature(err) && o.cfg.Retry.Allows(regenerations) {
			regenerations++
			o.log.Info("registry rejected delegation signature; regenerating",
				"owner_id", ownerID, "attempt", regenerations)
			o.discardDelegation(rec)
			rec, err = o.freshDelegation(ctx, ownerID)
			if err != nil {
				o.metrics.outcome(outcomeError)
				return models.SignInResult{}, err
			}
			continue
		}
		o.metrics.outcome(outcomeError)
		return models.SignInResult{}, err
	}
}

func (o *Orchestrator) registerRequest(key models.DelegatedKey, ownerID int64, token string) registry.RegisterRequest {
	req := registry.RegisterRequest{
		Address:   key.Address,
		AppFID:    key.AppFID,
		Deadline:  key.Deadline,
		Signature: key.Signature,
		Sponsor:   key.Sponsor,
	}
	if o.cfg.CallbackBaseURL != "" {
		req.RedirectURL = fmt.Sprintf("%s?auth_callback=true&fid=%d&token=%s", o.cfg.CallbackBaseURL, ownerID, token)
	}
	return req
}

// ResumeFromApproval is invoked when the external callback indicates the
// user may have approved. It confirms with the registry and marks the record
// verified; on a failed poll the configurable optimistic fallback marks it
// verified anyway rather than deadlocking a plausibly-approved session.
func (o *Orchestrator) ResumeFromApproval(ctx context.Context, ownerID int64, address, token string) error {
	unlock := o.flights.lock(ownerID)
	defer unlock()

	p, ok := o.pending.Get(ownerID)
	if !ok || !strings.EqualFold(p.Address, strings.TrimSpace(address)) || p.Token != token {
		return ErrResumeMismatch
	}

	verified, status, err := o.poller.Verified(ctx, p.Address)
	o.metrics.registryCall("check_status", err)
	if err != nil {
		if !o.cfg.OptimisticResume {
			// The marker stays so the same callback can be redeemed once the
			// registry answers; only an authoritative outcome consumes it.
			return err
		}
		o.log.Warn("approval status poll failed; optimistically marking delegation verified",
			"owner_id", ownerID, "error", err)
	} else if !verified {
		o.pending.Delete(ownerID)
		o.log.Info("approval callback without approved status", "owner_id", ownerID, "status", status.Status)
		return ErrNotApproved
	}

	rec, ok := o.records.Get(ownerID)
	if !ok {
		return ErrResumeMismatch
	}
	rec.Verified = true
	o.records.Put(rec)
	o.pending.Delete(ownerID)
	o.persistRecords()
	return nil
}

func (o *Orchestrator) persistRecords() {
	if o.persist == nil {
		return
	}
	if err := o.persist(); err != nil {
		o.log.Warn("delegation state persistence failed", "error", err)
	}
}

func missingChallengeField(err error) string {
	switch {
	case errors.Is(err, siwe.ErrMissingNonce):
		return "nonce"
	case errors.Is(err, siwe.ErrMissingDomain):
		return "domain"
	case errors.Is(err, siwe.ErrMissingURI):
		return "uri"
	default:
		return "challenge"
	}
}
