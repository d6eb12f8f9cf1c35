package escrow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/photon-storage/bounty-hub/auth"
	"github.com/photon-storage/bounty-hub/chain"
	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
)

// payeeWallet is the base58 encoding of 32 zero bytes.
const payeeWallet = "11111111111111111111111111111111"

const escrowAddress = "escrow-account"

type fakeEscrowStore struct {
	mu       sync.Mutex
	sub      *orm.Submission
	bounty   *orm.Bounty
	company  *orm.Company
	payee    *orm.User
	payments map[string]*orm.Payment
	commits  int
	// paidOverride, when set, is what PaidSubmissions reports instead
	// of the live payment count.
	paidOverride *int64
}

func newFakeEscrowStore() *fakeEscrowStore {
	return &fakeEscrowStore{
		sub: &orm.Submission{
			ID:        "sub-1",
			BountyID:  "bounty-1",
			UserID:    "user-hunter",
			CompanyID: "company-a",
			Title:     "auth bypass",
			Status:    orm.SubmissionPending,
		},
		bounty: &orm.Bounty{
			ID:                  "bounty-1",
			CompanyID:           "company-a",
			RewardPerSubmission: 10 * LamportsPerSol,
			EscrowAddress:       escrowAddress,
		},
		company: &orm.Company{ID: "company-a"},
		payee: &orm.User{
			ID:            "user-hunter",
			WalletAddress: payeeWallet,
		},
		payments: map[string]*orm.Payment{},
	}
}

func (s *fakeEscrowStore) SettlementView(
	ctx context.Context,
	submissionID string,
) (*SettlementView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if submissionID != s.sub.ID {
		return nil, errs.ErrNotFound
	}

	sub := *s.sub
	bounty := *s.bounty
	company := *s.company
	payee := *s.payee
	return &SettlementView{
		Submission: &sub,
		Bounty:     &bounty,
		Company:    &company,
		Payee:      &payee,
	}, nil
}

func (s *fakeEscrowStore) PaidSubmissions(
	ctx context.Context,
	bountyID string,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paidOverride != nil {
		return *s.paidOverride, nil
	}

	return int64(len(s.payments)), nil
}

func (s *fakeEscrowStore) CommitSettlement(
	ctx context.Context,
	c *Commit,
) (*orm.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commits++
	if limit := c.View.Bounty.MaxSubmissions; limit > 0 &&
		int64(len(s.payments)) >= int64(limit) {
		return nil, errors.Wrap(errs.ErrInvalidState,
			"maximum payout count reached for bounty")
	}

	if _, ok := s.payments[c.View.Submission.ID]; ok {
		return nil, errors.Wrap(errs.ErrConflict, "submission already settled")
	}

	if s.sub.Status != c.ObservedStatus || s.sub.PaymentID != nil {
		return nil, errors.Wrap(errs.ErrConflict, "submission transitioned concurrently")
	}

	now := time.Now()
	payment := &orm.Payment{
		ID:            uuid.NewString(),
		SubmissionID:  c.View.Submission.ID,
		UserID:        c.View.Submission.UserID,
		CompanyID:     c.View.Submission.CompanyID,
		Amount:        c.Amounts.Total,
		PlatformFee:   c.Amounts.PlatformFee,
		NetAmount:     c.Amounts.Payee,
		TxSignature:   c.TxSignature,
		FromWallet:    c.View.Bounty.EscrowAddress,
		ToWallet:      c.View.Payee.WalletAddress,
		Confirmations: c.Confirmations,
		Status:        orm.PaymentCompleted,
		CompletedAt:   &now,
	}
	s.payments[c.View.Submission.ID] = payment

	s.sub.Status = orm.SubmissionApproved
	s.sub.PaymentID = &payment.ID
	s.sub.RewardAmount = &c.Amounts.Total

	s.bounty.PaidOut += c.Amounts.Total
	s.bounty.ValidSubmissions++
	s.company.TotalBountiesPaid += c.Amounts.Total
	s.company.ResolvedVulnerabilities++
	s.payee.TotalEarnings += c.Amounts.Payee
	s.payee.TotalBounties++

	return payment, nil
}

type fakeVerifier struct {
	confirmations uint64
	confErr       error
	tx            *chain.Tx
	txErr         error
	balance       int64
	balanceErr    error
}

func (v *fakeVerifier) Confirmations(
	ctx context.Context,
	signature string,
) (uint64, error) {
	return v.confirmations, v.confErr
}

func (v *fakeVerifier) Transaction(
	ctx context.Context,
	signature string,
) (*chain.Tx, error) {
	return v.tx, v.txErr
}

func (v *fakeVerifier) EscrowBalance(
	ctx context.Context,
	address string,
) (int64, error) {
	return v.balance, v.balanceErr
}

type fakeSubmitter struct {
	signature string
	err       error
	called    int
}

func (s *fakeSubmitter) SubmitTransfer(
	ctx context.Context,
	req *chain.TransferRequest,
) (string, error) {
	s.called++
	if s.err != nil {
		return "", s.err
	}

	return s.signature, nil
}

type fakeEnqueuer struct {
	mu     sync.Mutex
	titles []string
}

func (n *fakeEnqueuer) Enqueue(
	ctx context.Context,
	userID string,
	title string,
	message string,
	actionURL string,
) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

// settledVerifier returns a verifier that reports the transfer as
// confirmed with the payee receiving exactly the given amount.
func settledVerifier(payeeAmount int64) *fakeVerifier {
	return &fakeVerifier{
		confirmations: 5,
		tx: &chain.Tx{
			Slot:         1000,
			AccountKeys:  []string{escrowAddress, payeeWallet},
			PreBalances:  []int64{20 * LamportsPerSol, 0},
			PostBalances: []int64{20*LamportsPerSol - payeeAmount, payeeAmount},
		},
		balance: 20 * LamportsPerSol,
	}
}

func approver() *auth.Principal {
	return &auth.Principal{
		UserID: "user-approver",
		Role:   orm.RoleCompanyAdmin,
		Memberships: []auth.Membership{
			{
				CompanyID:         "company-a",
				CanReviewBounty:   true,
				CanApprovePayment: true,
			},
		},
	}
}

func TestSettle(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	verifier := settledVerifier(9_800_000_000)
	submitter := &fakeSubmitter{signature: "sig-1"}
	notifier := &fakeEnqueuer{}
	c := NewCoordinator(store, verifier, submitter, notifier, 200)

	payment, err := c.Settle(ctx, "sub-1", approver(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, submitter.called)
	require.Equal(t, int64(10_000_000_000), payment.Amount)
	require.Equal(t, int64(200_000_000), payment.PlatformFee)
	require.Equal(t, int64(9_800_000_000), payment.NetAmount)
	require.Equal(t, "sig-1", payment.TxSignature)
	require.Equal(t, orm.PaymentCompleted, payment.Status)

	// Ledger deltas applied with the commit.
	require.Equal(t, orm.SubmissionApproved, store.sub.Status)
	require.NotNil(t, store.sub.PaymentID)
	require.Equal(t, int64(10_000_000_000), store.bounty.PaidOut)
	require.Equal(t, uint32(1), store.bounty.ValidSubmissions)
	require.Equal(t, int64(10_000_000_000), store.company.TotalBountiesPaid)
	require.Equal(t, uint64(1), store.company.ResolvedVulnerabilities)
	require.Equal(t, int64(9_800_000_000), store.payee.TotalEarnings)
	require.Equal(t, uint64(1), store.payee.TotalBounties)

	require.Equal(t, []string{"Payment received"}, notifier.titles)
}

func TestSettleUnauthorized(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	c := NewCoordinator(
		store,
		settledVerifier(9_800_000_000),
		&fakeSubmitter{signature: "sig-1"},
		&fakeEnqueuer{},
		200,
	)

	hunter := &auth.Principal{
		UserID: "user-hunter",
		Role:   orm.RoleBountyHunter,
	}
	_, err := c.Settle(ctx, "sub-1", hunter, 0)
	require.True(t, errors.Is(err, errs.ErrUnauthorized))
	require.Equal(t, 0, store.commits)
}

func TestSettleMissingWallet(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	store.payee.WalletAddress = ""
	submitter := &fakeSubmitter{signature: "sig-1"}
	c := NewCoordinator(
		store,
		settledVerifier(9_800_000_000),
		submitter,
		&fakeEnqueuer{},
		200,
	)

	_, err := c.Settle(ctx, "sub-1", approver(), 0)
	require.True(t, errors.Is(err, errs.ErrMissingWallet))
	require.Equal(t, 0, submitter.called)
}

func TestSettleRewardOverride(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	c := NewCoordinator(
		store,
		settledVerifier(4_900_000_000),
		&fakeSubmitter{signature: "sig-1"},
		&fakeEnqueuer{},
		200,
	)

	// Overrides above the bounty reward are rejected.
	_, err := c.Settle(ctx, "sub-1", approver(), 11*LamportsPerSol)
	require.True(t, errors.Is(err, errs.ErrValidation))

	payment, err := c.Settle(ctx, "sub-1", approver(), 5*LamportsPerSol)
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000_000), payment.Amount)
	require.Equal(t, int64(4_900_000_000), payment.NetAmount)
}

func TestSettleInsufficientEscrow(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	verifier := settledVerifier(9_800_000_000)
	verifier.balance = LamportsPerSol
	submitter := &fakeSubmitter{signature: "sig-1"}
	c := NewCoordinator(store, verifier, submitter, &fakeEnqueuer{}, 200)

	_, err := c.Settle(ctx, "sub-1", approver(), 0)
	require.True(t, errors.Is(err, errs.ErrChainFailure))
	require.Equal(t, 0, submitter.called)
	require.Equal(t, 0, store.commits)
}

func TestSettlePayoutCapacity(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	store.bounty.MaxSubmissions = 1
	store.payments["other-sub"] = &orm.Payment{}
	c := NewCoordinator(
		store,
		settledVerifier(9_800_000_000),
		&fakeSubmitter{signature: "sig-1"},
		&fakeEnqueuer{},
		200,
	)

	_, err := c.Settle(ctx, "sub-1", approver(), 0)
	require.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestSettlePayoutCapacityRace(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	store.bounty.MaxSubmissions = 1
	store.payments["other-sub"] = &orm.Payment{}

	// A concurrent settlement filled the last slot after the early
	// check ran; the commit re-check catches it.
	stale := int64(0)
	store.paidOverride = &stale
	notifier := &fakeEnqueuer{}
	c := NewCoordinator(
		store,
		settledVerifier(9_800_000_000),
		&fakeSubmitter{signature: "sig-1"},
		notifier,
		200,
	)

	_, err := c.Settle(ctx, "sub-1", approver(), 0)
	require.True(t, errors.Is(err, errs.ErrInvalidState))
	require.Equal(t, orm.SubmissionPending, store.sub.Status)
	require.Len(t, store.payments, 1)
	require.Empty(t, notifier.titles)
}

func TestSettleVerifyPending(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	notifier := &fakeEnqueuer{}

	// Not yet visible on chain.
	verifier := settledVerifier(9_800_000_000)
	verifier.confErr = errs.ErrNotFound
	c := NewCoordinator(
		store,
		verifier,
		&fakeSubmitter{signature: "sig-1"},
		notifier,
		200,
	)
	_, err := c.Settle(ctx, "sub-1", approver(), 0)
	require.True(t, errors.Is(err, errs.ErrSettlementPending))

	// Not yet confirmed.
	verifier = settledVerifier(9_800_000_000)
	verifier.confirmations = 0
	c = NewCoordinator(
		store,
		verifier,
		&fakeSubmitter{signature: "sig-1"},
		notifier,
		200,
	)
	_, err = c.Settle(ctx, "sub-1", approver(), 0)
	require.True(t, errors.Is(err, errs.ErrSettlementPending))

	// Nothing persisted and no notification for either attempt.
	require.Equal(t, 0, store.commits)
	require.Equal(t, orm.SubmissionPending, store.sub.Status)
	require.Empty(t, notifier.titles)
}

func TestSettleVerifyTimeout(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		confErr error
		txErr   error
	}{
		{
			name:    "confirmation read timed out",
			confErr: context.DeadlineExceeded,
		},
		{
			name:  "transaction read transport failure",
			txErr: errors.New("connection refused"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeEscrowStore()
			verifier := settledVerifier(9_800_000_000)
			verifier.confErr = tc.confErr
			verifier.txErr = tc.txErr
			c := NewCoordinator(
				store,
				verifier,
				&fakeSubmitter{signature: "sig-1"},
				&fakeEnqueuer{},
				200,
			)

			// The read path is side-effect free; its failures surface
			// as retryable, not as a hard failure.
			_, err := c.Settle(ctx, "sub-1", approver(), 0)
			require.True(t, errors.Is(err, errs.ErrSettlementPending))
			require.True(t, errs.IsRetryable(err))
			require.Equal(t, 0, store.commits)
			require.Equal(t, orm.SubmissionPending, store.sub.Status)
		})
	}
}

func TestSettleFailedTransaction(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	verifier := settledVerifier(9_800_000_000)
	verifier.tx.Failed = true
	c := NewCoordinator(
		store,
		verifier,
		&fakeSubmitter{signature: "sig-1"},
		&fakeEnqueuer{},
		200,
	)

	_, err := c.Settle(ctx, "sub-1", approver(), 0)
	require.True(t, errors.Is(err, errs.ErrChainFailure))
	require.Equal(t, 0, store.commits)
}

func TestSettleAmountDrift(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()

	// The confirmed transfer credits the payee less than the computed
	// amount.
	c := NewCoordinator(
		store,
		settledVerifier(9_800_000_000-1),
		&fakeSubmitter{signature: "sig-1"},
		&fakeEnqueuer{},
		200,
	)

	_, err := c.Settle(ctx, "sub-1", approver(), 0)
	require.True(t, errors.Is(err, errs.ErrChainFailure))
	require.Equal(t, 0, store.commits)
}

func TestSettleIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	c := NewCoordinator(
		store,
		settledVerifier(9_800_000_000),
		&fakeSubmitter{signature: "sig-1"},
		&fakeEnqueuer{},
		200,
	)

	_, err := c.Settle(ctx, "sub-1", approver(), 0)
	require.NoError(t, err)

	// The second attempt finds the payment recorded and conflicts.
	_, err = c.Settle(ctx, "sub-1", approver(), 0)
	require.True(t, errors.Is(err, errs.ErrConflict))
	require.Len(t, store.payments, 1)
}

func TestSettleConcurrent(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	c := NewCoordinator(
		store,
		settledVerifier(9_800_000_000),
		&fakeSubmitter{signature: "sig-1"},
		&fakeEnqueuer{},
		200,
	)

	const attempts = 8
	errsCh := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Settle(ctx, "sub-1", approver(), 0)
			errsCh <- err
		}()
	}
	wg.Wait()
	close(errsCh)

	succeeded := 0
	for err := range errsCh {
		if err == nil {
			succeeded++
			continue
		}

		require.True(t, errors.Is(err, errs.ErrConflict))
	}

	// At most one payment regardless of racing approvals.
	require.Equal(t, 1, succeeded)
	require.Len(t, store.payments, 1)
	require.Equal(t, int64(10_000_000_000), store.bounty.PaidOut)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	store := newFakeEscrowStore()
	submitter := &fakeSubmitter{signature: "unused"}
	c := NewCoordinator(
		store,
		settledVerifier(9_800_000_000),
		submitter,
		&fakeEnqueuer{},
		200,
	)

	payment, err := c.Confirm(ctx, "sub-1", "sig-external", approver())
	require.NoError(t, err)
	require.Equal(t, "sig-external", payment.TxSignature)
	// Confirm never submits a transfer of its own.
	require.Equal(t, 0, submitter.called)

	// Retrying the same confirmation is rejected, not double-paid.
	_, err = c.Confirm(ctx, "sub-1", "sig-external", approver())
	require.True(t, errors.Is(err, errs.ErrConflict))
	require.Len(t, store.payments, 1)
}
