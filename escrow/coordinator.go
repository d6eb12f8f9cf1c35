package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/photon-storage/go-common/log"

	"github.com/photon-storage/bounty-hub/auth"
	"github.com/photon-storage/bounty-hub/chain"
	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
	"github.com/photon-storage/bounty-hub/metrics"
)

// Verifier reads settlement transactions back from the chain.
type Verifier interface {
	Confirmations(ctx context.Context, signature string) (uint64, error)
	Transaction(ctx context.Context, signature string) (*chain.Tx, error)
	EscrowBalance(ctx context.Context, address string) (int64, error)
}

// Submitter constructs, signs and submits escrow transfers.
type Submitter interface {
	SubmitTransfer(ctx context.Context, req *chain.TransferRequest) (string, error)
}

// Notifier enqueues user notifications. Implementations are
// fire-and-forget; a failed enqueue never fails a settlement.
type Notifier interface {
	Enqueue(ctx context.Context, userID, title, message, actionURL string)
}

// Coordinator converts one approval decision into exactly one
// completed payment, or fails with nothing persisted.
type Coordinator struct {
	store            Store
	verifier         Verifier
	signer           Submitter
	notifier         Notifier
	feeBps           uint32
	minConfirmations uint64
}

// NewCoordinator returns a new settlement coordinator instance.
func NewCoordinator(
	store Store,
	verifier Verifier,
	signer Submitter,
	notifier Notifier,
	feeBps uint32,
) *Coordinator {
	return &Coordinator{
		store:            store,
		verifier:         verifier,
		signer:           signer,
		notifier:         notifier,
		feeBps:           feeBps,
		minConfirmations: 1,
	}
}

// Settle runs the full approval-to-payment flow: amount computation,
// transfer submission through the signer, on-chain verification, and
// the atomic commit. Until the commit succeeds the submission stays
// in its observed status; any failure before that leaves no local
// state behind.
func (c *Coordinator) Settle(
	ctx context.Context,
	submissionID string,
	principal *auth.Principal,
	overrideLamports int64,
) (*orm.Payment, error) {
	view, err := c.store.SettlementView(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	if err := c.checkPreconditions(view, principal); err != nil {
		return nil, err
	}

	amounts, err := c.computeAmounts(view, overrideLamports)
	if err != nil {
		return nil, err
	}

	if err := c.checkPayoutCapacity(ctx, view); err != nil {
		return nil, err
	}

	balance, err := c.verifier.EscrowBalance(ctx, view.Bounty.EscrowAddress)
	if err != nil {
		return nil, err
	}

	if balance < amounts.Total {
		return nil, errors.Wrap(errs.ErrChainFailure, "insufficient escrow funds")
	}

	signature, err := c.signer.SubmitTransfer(ctx, &chain.TransferRequest{
		FromEscrow:  view.Bounty.EscrowAddress,
		ToWallet:    view.Payee.WalletAddress,
		Amount:      amounts.Total,
		PlatformFee: amounts.PlatformFee,
	})
	if err != nil {
		metrics.SettlementResult("submit_failed")
		return nil, err
	}

	return c.verifyAndCommit(ctx, view, principal, amounts, signature)
}

// Confirm settles a submission whose transfer was produced
// out-of-band, re-running only the verification and commit steps.
// It is safe to retry with the same transaction reference; at most
// one payment is ever recorded.
func (c *Coordinator) Confirm(
	ctx context.Context,
	submissionID string,
	txSignature string,
	principal *auth.Principal,
) (*orm.Payment, error) {
	view, err := c.store.SettlementView(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	if err := c.checkPreconditions(view, principal); err != nil {
		return nil, err
	}

	amounts, err := c.computeAmounts(view, 0)
	if err != nil {
		return nil, err
	}

	return c.verifyAndCommit(ctx, view, principal, amounts, txSignature)
}

func (c *Coordinator) checkPreconditions(
	view *SettlementView,
	principal *auth.Principal,
) error {
	if !auth.CanAct(principal, auth.ActionApprovePayment, auth.Resource{
		CompanyID: view.Submission.CompanyID,
	}) {
		return errs.ErrUnauthorized
	}

	if view.Submission.PaymentID != nil {
		return errors.Wrap(errs.ErrConflict, "payment already recorded")
	}

	if !view.Submission.Status.Reviewable() {
		return errors.Wrapf(errs.ErrInvalidState,
			"submission is %s", view.Submission.Status)
	}

	if view.Payee.WalletAddress == "" ||
		!chain.ValidAddress(view.Payee.WalletAddress) {
		return errors.Wrap(errs.ErrMissingWallet, "payee wallet not configured")
	}

	if view.Bounty.EscrowAddress == "" {
		return errors.Wrap(errs.ErrMissingWallet, "bounty escrow not initialized")
	}

	return nil
}

func (c *Coordinator) computeAmounts(
	view *SettlementView,
	overrideLamports int64,
) (Amounts, error) {
	total := view.Bounty.RewardPerSubmission
	if view.Submission.RewardAmount != nil {
		total = *view.Submission.RewardAmount
	}

	if overrideLamports != 0 {
		if overrideLamports > view.Bounty.RewardPerSubmission {
			return Amounts{}, errors.Wrap(errs.ErrValidation,
				"reward override exceeds bounty reward")
		}

		total = overrideLamports
	}

	return Split(total, c.feeBps)
}

func (c *Coordinator) checkPayoutCapacity(
	ctx context.Context,
	view *SettlementView,
) error {
	if view.Bounty.MaxSubmissions == 0 {
		return nil
	}

	paid, err := c.store.PaidSubmissions(ctx, view.Bounty.ID)
	if err != nil {
		return err
	}

	if paid >= int64(view.Bounty.MaxSubmissions) {
		return errors.Wrap(errs.ErrInvalidState,
			"maximum payout count reached for bounty")
	}

	return nil
}

func (c *Coordinator) verifyAndCommit(
	ctx context.Context,
	view *SettlementView,
	principal *auth.Principal,
	amounts Amounts,
	signature string,
) (*orm.Payment, error) {
	confirmations, err := c.verifyTransfer(ctx, view, amounts, signature)
	if err != nil {
		metrics.SettlementResult("verify_failed")
		return nil, err
	}

	payment, err := c.store.CommitSettlement(ctx, &Commit{
		View:           view,
		ObservedStatus: view.Submission.Status,
		ReviewerID:     principal.UserID,
		Amounts:        amounts,
		TxSignature:    signature,
		Confirmations:  confirmations,
	})
	if err != nil {
		metrics.SettlementResult("commit_failed")
		return nil, err
	}

	metrics.SettlementResult("completed")
	c.notifier.Enqueue(
		ctx,
		view.Payee.ID,
		"Payment received",
		fmt.Sprintf("You have received %s SOL for your submission %q.",
			FormatSol(amounts.Payee), view.Submission.Title),
		"/submissions/"+view.Submission.ID,
	)

	return payment, nil
}

// verifyTransfer is the idempotent, side-effect free verification
// step. It may be re-invoked with the same signature any number of
// times before the commit.
func (c *Coordinator) verifyTransfer(
	ctx context.Context,
	view *SettlementView,
	amounts Amounts,
	signature string,
) (uint64, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveVerifyDuration(time.Since(start))
	}()

	confirmations, err := c.verifier.Confirmations(ctx, signature)
	if err != nil {
		return 0, retryableReadErr(err, "read confirmations")
	}

	if confirmations < c.minConfirmations {
		return 0, errors.Wrapf(errs.ErrSettlementPending,
			"%d of %d confirmations", confirmations, c.minConfirmations)
	}

	tx, err := c.verifier.Transaction(ctx, signature)
	if err != nil {
		return 0, retryableReadErr(err, "read transaction")
	}

	if tx.Failed {
		return 0, errors.Wrap(errs.ErrChainFailure, "transaction failed on chain")
	}

	delta, ok := tx.BalanceDelta(view.Payee.WalletAddress)
	if !ok {
		return 0, errors.Wrap(errs.ErrChainFailure,
			"payee wallet not present in transaction")
	}

	if delta < amounts.Payee {
		log.Warn("confirmed transfer amount below expectation",
			"signature", signature,
			"expected", amounts.Payee,
			"actual", delta,
		)
		return 0, errors.Wrap(errs.ErrChainFailure,
			"confirmed amount differs from computed amount")
	}

	return confirmations, nil
}

// retryableReadErr classifies a chain read failure. Verification is
// side-effect free, so a transaction that is not visible yet, a timed
// out RPC call or a transport failure can all be retried with the
// same signature. Only a definitive chain answer stays hard.
func retryableReadErr(err error, op string) error {
	if errors.Is(err, errs.ErrChainFailure) {
		return err
	}

	return errors.Wrapf(errs.ErrSettlementPending, "%s: %v", op, err)
}

// FormatSol renders a lamport value in display units with trailing
// zeros trimmed.
func FormatSol(lamports int64) string {
	whole := lamports / LamportsPerSol
	frac := lamports % LamportsPerSol
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}

	s := fmt.Sprintf("%d.%09d", whole, frac)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}

	return s
}
