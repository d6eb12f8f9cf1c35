package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
)

type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[string]*orm.Payment
}

func newFakePaymentStore(payments ...*orm.Payment) *fakePaymentStore {
	s := &fakePaymentStore{
		payments: map[string]*orm.Payment{},
	}
	for _, p := range payments {
		s.payments[p.ID] = p
	}
	return s
}

func (s *fakePaymentStore) OpenPayments(
	ctx context.Context,
) ([]*orm.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := make([]*orm.Payment, 0)
	for _, p := range s.payments {
		if p.Status == orm.PaymentPending ||
			p.Status == orm.PaymentProcessing {
			copied := *p
			open = append(open, &copied)
		}
	}
	return open, nil
}

func (s *fakePaymentStore) UpdateConfirmations(
	ctx context.Context,
	p *orm.Payment,
	confirmations uint64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.payments[p.ID]
	if stored.Status != p.Status {
		return nil
	}

	stored.Confirmations = confirmations
	stored.Status = orm.PaymentProcessing
	return nil
}

func (s *fakePaymentStore) Complete(
	ctx context.Context,
	p *orm.Payment,
	confirmations uint64,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.payments[p.ID]
	if stored.Status != p.Status {
		return false, nil
	}

	now := time.Now()
	stored.Confirmations = confirmations
	stored.Status = orm.PaymentCompleted
	stored.CompletedAt = &now
	return true, nil
}

func (s *fakePaymentStore) Fail(
	ctx context.Context,
	p *orm.Payment,
	reason string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.payments[p.ID]
	if stored.Status != p.Status {
		return nil
	}

	stored.Status = orm.PaymentFailed
	stored.FailureReason = reason
	return nil
}

type fakeChain struct {
	confirmations map[string]uint64
	errs          map[string]error
}

func (c *fakeChain) Confirmations(
	ctx context.Context,
	signature string,
) (uint64, error) {
	if err := c.errs[signature]; err != nil {
		return 0, err
	}

	return c.confirmations[signature], nil
}

func processingPayment(id, signature string) *orm.Payment {
	return &orm.Payment{
		ID:           id,
		SubmissionID: "sub-" + id,
		TxSignature:  signature,
		Status:       orm.PaymentProcessing,
	}
}

func TestProcessOpenPaymentsCompletes(t *testing.T) {
	store := newFakePaymentStore(processingPayment("pay-1", "sig-1"))
	w := New(context.Background(), 1, store, &fakeChain{
		confirmations: map[string]uint64{"sig-1": 3},
	})

	require.NoError(t, w.processOpenPayments(context.Background()))

	p := store.payments["pay-1"]
	require.Equal(t, orm.PaymentCompleted, p.Status)
	require.Equal(t, uint64(3), p.Confirmations)
	require.NotNil(t, p.CompletedAt)
}

func TestProcessOpenPaymentsNotVisible(t *testing.T) {
	store := newFakePaymentStore(processingPayment("pay-1", "sig-1"))
	w := New(context.Background(), 1, store, &fakeChain{
		errs: map[string]error{"sig-1": errs.ErrNotFound},
	})

	// Not visible yet is not an error; the payment stays open for the
	// next tick.
	require.NoError(t, w.processOpenPayments(context.Background()))
	require.Equal(t, orm.PaymentProcessing, store.payments["pay-1"].Status)
}

func TestProcessOpenPaymentsUnconfirmed(t *testing.T) {
	pending := processingPayment("pay-1", "sig-1")
	pending.Status = orm.PaymentPending
	store := newFakePaymentStore(pending)
	w := New(context.Background(), 1, store, &fakeChain{
		confirmations: map[string]uint64{"sig-1": 0},
	})

	require.NoError(t, w.processOpenPayments(context.Background()))

	p := store.payments["pay-1"]
	require.Equal(t, orm.PaymentProcessing, p.Status)
	require.Equal(t, uint64(0), p.Confirmations)
	require.Nil(t, p.CompletedAt)
}

func TestProcessOpenPaymentsChainFailure(t *testing.T) {
	store := newFakePaymentStore(processingPayment("pay-1", "sig-1"))
	w := New(context.Background(), 1, store, &fakeChain{
		errs: map[string]error{
			"sig-1": errors.Wrap(errs.ErrChainFailure, "transaction failed on chain"),
		},
	})

	require.NoError(t, w.processOpenPayments(context.Background()))

	p := store.payments["pay-1"]
	require.Equal(t, orm.PaymentFailed, p.Status)
	require.Contains(t, p.FailureReason, "transaction failed on chain")
}

func TestProcessOpenPaymentsContinuesPastErrors(t *testing.T) {
	store := newFakePaymentStore(
		processingPayment("pay-1", "sig-1"),
		processingPayment("pay-2", "sig-2"),
	)
	w := New(context.Background(), 1, store, &fakeChain{
		confirmations: map[string]uint64{"sig-2": 5},
		errs:          map[string]error{"sig-1": errors.New("connection refused")},
	})

	// One failing payment never blocks the rest of the batch.
	require.NoError(t, w.processOpenPayments(context.Background()))
	require.Equal(t, orm.PaymentProcessing, store.payments["pay-1"].Status)
	require.Equal(t, orm.PaymentCompleted, store.payments["pay-2"].Status)
}
