package watcher

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
)

// Store persists payment progress. Every status write is conditioned
// on the status the watcher observed, so a racing writer makes the
// update a no-op instead of a silent overwrite.
type Store interface {
	// OpenPayments returns the payments still waiting on chain
	// confirmations.
	OpenPayments(ctx context.Context) ([]*orm.Payment, error)

	// UpdateConfirmations refreshes the confirmation count of a
	// payment that is not confirmed yet.
	UpdateConfirmations(ctx context.Context, p *orm.Payment, confirmations uint64) error

	// Complete marks the payment COMPLETED. It reports false when the
	// payment left the observed status concurrently.
	Complete(ctx context.Context, p *orm.Payment, confirmations uint64) (bool, error)

	// Fail marks the payment FAILED with the given reason.
	Fail(ctx context.Context, p *orm.Payment, reason string) error
}

type mysqlStore struct {
	db *gorm.DB
}

// NewStore returns the mysql-backed payment store.
func NewStore(db *gorm.DB) Store {
	return &mysqlStore{db: db}
}

func (s *mysqlStore) OpenPayments(ctx context.Context) ([]*orm.Payment, error) {
	payments := make([]*orm.Payment, 0)
	if err := s.db.WithContext(ctx).
		Model(&orm.Payment{}).
		Where("status IN ?", []orm.PaymentStatus{
			orm.PaymentPending,
			orm.PaymentProcessing,
		}).
		Find(&payments).
		Error; err != nil {
		return nil, errors.Wrapf(errs.ErrInternal, "load open payments: %v", err)
	}

	return payments, nil
}

func (s *mysqlStore) UpdateConfirmations(
	ctx context.Context,
	p *orm.Payment,
	confirmations uint64,
) error {
	if err := s.db.WithContext(ctx).
		Model(&orm.Payment{}).
		Where("id = ? AND status = ?", p.ID, p.Status).
		Updates(map[string]interface{}{
			"confirmations": confirmations,
			"status":        orm.PaymentProcessing,
		}).Error; err != nil {
		return errors.Wrapf(errs.ErrInternal, "update confirmations: %v", err)
	}

	return nil
}

func (s *mysqlStore) Complete(
	ctx context.Context,
	p *orm.Payment,
	confirmations uint64,
) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&orm.Payment{}).
		Where("id = ? AND status = ?", p.ID, p.Status).
		Updates(map[string]interface{}{
			"confirmations": confirmations,
			"status":        orm.PaymentCompleted,
			"completed_at":  time.Now(),
		})
	if res.Error != nil {
		return false, errors.Wrapf(errs.ErrInternal, "complete payment: %v", res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (s *mysqlStore) Fail(
	ctx context.Context,
	p *orm.Payment,
	reason string,
) error {
	if err := s.db.WithContext(ctx).
		Model(&orm.Payment{}).
		Where("id = ? AND status = ?", p.ID, p.Status).
		Updates(map[string]interface{}{
			"status":         orm.PaymentFailed,
			"failure_reason": reason,
		}).Error; err != nil {
		return errors.Wrapf(errs.ErrInternal, "fail payment: %v", err)
	}

	return nil
}
