// Package errs defines the error kinds shared by the review and
// settlement pipeline. Callers classify failures with errors.Is
// against these sentinels.
package errs

import "github.com/pkg/errors"

var (
	// ErrUnauthorized is returned when the authorization guard denies
	// the requested action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a submission, bounty or payment
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a transition is not legal from
	// the submission's current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when a conditional write lost the race
	// against a concurrent transition, or when a settlement has
	// already been recorded. Retry is the caller's decision.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned when a required payload field is
	// missing or out of range.
	ErrValidation = errors.New("validation error")

	// ErrInvalidAmount is returned for non-positive or unsafe reward
	// amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrMissingWallet is returned when the payee or payer wallet is
	// not configured.
	ErrMissingWallet = errors.New("missing wallet")

	// ErrSettlementPending is returned when on-chain verification is
	// not yet satisfied. The same transaction reference can be
	// re-verified safely.
	ErrSettlementPending = errors.New("settlement pending")

	// ErrChainFailure is returned when the signer or verifier reported
	// a hard failure. Not automatically retried.
	ErrChainFailure = errors.New("chain failure")

	// ErrInternal is returned for storage failures during commit. The
	// whole settlement unit is rolled back before this surfaces.
	ErrInternal = errors.New("internal error")
)

// IsRetryable reports whether the caller may re-issue the failed
// request as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSettlementPending)
}
