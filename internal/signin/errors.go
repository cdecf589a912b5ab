package signin

import (
	"errors"
	"fmt"
)

// ErrRejectedByUser is the explicit user decline. The bridge is allowed to
// pass it through to the guest verbatim.
var ErrRejectedByUser = errors.New("sign-in rejected by user")

// PreconditionError marks a caller bug: a required input was missing before
// any network call was made.
type PreconditionError struct {
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("sign-in precondition failed: missing %s", e.Field)
}

// PendingApprovalError is not a failure of the flow: the delegation was
// submitted and the user must approve it out of band. The caller shows the
// approval URL and retries after confirmation.
type PendingApprovalError struct {
	ApprovalURL string
}

func (e *PendingApprovalError) Error() string {
	return "sign-in pending out-of-band approval"
}

// ErrResumeMismatch is returned when a resume callback does not match the
// pending approval on file.
var ErrResumeMismatch = errors.New("approval callback does not match pending sign-in")
