// Package watcher drives payments recorded out-of-band to a terminal
// status by polling the chain for their confirmation counts.
package watcher

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/photon-storage/go-common/log"

	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
)

// Verifier reads transaction confirmations back from the chain.
type Verifier interface {
	Confirmations(ctx context.Context, signature string) (uint64, error)
}

// PaymentWatcher is the processor for completing pending payments.
type PaymentWatcher struct {
	ctx              context.Context
	refreshInterval  uint64
	store            Store
	verifier         Verifier
	minConfirmations uint64
	quit             chan struct{}
}

// New returns the new instance of PaymentWatcher.
func New(
	ctx context.Context,
	refreshInterval uint64,
	store Store,
	verifier Verifier,
) *PaymentWatcher {
	return &PaymentWatcher{
		ctx:              ctx,
		refreshInterval:  refreshInterval,
		store:            store,
		verifier:         verifier,
		minConfirmations: 1,
		quit:             make(chan struct{}),
	}
}

// Run executing the timing task of re-verifying open payments.
func (w *PaymentWatcher) Run() {
	ticker := time.NewTicker(time.Duration(w.refreshInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return

		case <-w.ctx.Done():
			return

		case <-ticker.C:
		}

		if err := w.processOpenPayments(w.ctx); err != nil {
			log.Error("watcher fail on processing open payments", "error", err)
		}
	}
}

// Stop exits payment watcher
func (w *PaymentWatcher) Stop() {
	close(w.quit)
}

func (w *PaymentWatcher) processOpenPayments(ctx context.Context) error {
	payments, err := w.store.OpenPayments(ctx)
	if err != nil {
		return err
	}

	for _, p := range payments {
		if err := w.processPayment(ctx, p); err != nil {
			log.Error("watcher fail on payment",
				"payment", p.ID,
				"signature", p.TxSignature,
				"error", err,
			)
		}
	}

	return nil
}

func (w *PaymentWatcher) processPayment(
	ctx context.Context,
	p *orm.Payment,
) error {
	confirmations, err := w.verifier.Confirmations(ctx, p.TxSignature)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// Not visible yet; try again next tick.
			return nil
		}

		if errors.Is(err, errs.ErrChainFailure) {
			return w.store.Fail(ctx, p, err.Error())
		}

		return err
	}

	if confirmations < w.minConfirmations {
		return w.store.UpdateConfirmations(ctx, p, confirmations)
	}

	completed, err := w.store.Complete(ctx, p, confirmations)
	if err != nil {
		return err
	}

	if !completed {
		// Lost the race against another watcher or a manual verify.
		return nil
	}

	log.Info("payment completed",
		"payment", p.ID,
		"signature", p.TxSignature,
		"confirmations", confirmations,
	)
	return nil
}
