package escrow

import (
	"context"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
)

const mysqlDuplicateEntry = 1062

// SettlementView is the loaded aggregate a settlement operates on.
type SettlementView struct {
	Submission *orm.Submission
	Bounty     *orm.Bounty
	Company    *orm.Company
	Payee      *orm.User
}

// Commit is the unit of work persisted atomically once on-chain
// verification succeeded.
type Commit struct {
	View *SettlementView
	// ObservedStatus keys the conditional status update; a racing
	// transition invalidates the whole commit.
	ObservedStatus orm.SubmissionStatus
	ReviewerID     string
	Amounts        Amounts
	TxSignature    string
	Confirmations  uint64
}

// Store persists settlements. The single implementation runs on
// mysql; tests substitute an in-memory fake.
type Store interface {
	// SettlementView loads the submission with its bounty, company
	// and payee.
	SettlementView(ctx context.Context, submissionID string) (*SettlementView, error)

	// PaidSubmissions counts the bounty's submissions that already
	// hold a payment.
	PaidSubmissions(ctx context.Context, bountyID string) (int64, error)

	// CommitSettlement applies the commit as one transaction: payout
	// cap re-check, payment insert, conditional submission update and
	// ledger deltas. It fails with errs.ErrConflict when the
	// submission was settled or transitioned concurrently and with
	// errs.ErrInvalidState when the bounty payout cap was reached in
	// the meantime, leaving nothing applied.
	CommitSettlement(ctx context.Context, c *Commit) (*orm.Payment, error)
}

type mysqlStore struct {
	db *gorm.DB
}

// NewStore returns the mysql-backed settlement store.
func NewStore(db *gorm.DB) Store {
	return &mysqlStore{db: db}
}

func (s *mysqlStore) SettlementView(
	ctx context.Context,
	submissionID string,
) (*SettlementView, error) {
	sub := &orm.Submission{}
	if err := s.db.WithContext(ctx).
		Model(&orm.Submission{}).
		Where("id = ?", submissionID).
		First(sub).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, errors.Wrapf(errs.ErrInternal, "load submission: %v", err)
	}

	bounty := &orm.Bounty{}
	if err := s.db.WithContext(ctx).
		Model(&orm.Bounty{}).
		Where("id = ?", sub.BountyID).
		First(bounty).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, errors.Wrapf(errs.ErrInternal, "load bounty: %v", err)
	}

	company := &orm.Company{}
	if err := s.db.WithContext(ctx).
		Model(&orm.Company{}).
		Where("id = ?", sub.CompanyID).
		First(company).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, errors.Wrapf(errs.ErrInternal, "load company: %v", err)
	}

	payee := &orm.User{}
	if err := s.db.WithContext(ctx).
		Model(&orm.User{}).
		Where("id = ?", sub.UserID).
		First(payee).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, errors.Wrapf(errs.ErrInternal, "load payee: %v", err)
	}

	return &SettlementView{
		Submission: sub,
		Bounty:     bounty,
		Company:    company,
		Payee:      payee,
	}, nil
}

func (s *mysqlStore) PaidSubmissions(
	ctx context.Context,
	bountyID string,
) (int64, error) {
	count := int64(0)
	if err := s.db.WithContext(ctx).
		Model(&orm.Submission{}).
		Where("bounty_id = ? AND payment_id IS NOT NULL", bountyID).
		Count(&count).
		Error; err != nil {
		return 0, errors.Wrapf(errs.ErrInternal, "count paid submissions: %v", err)
	}

	return count, nil
}

func (s *mysqlStore) CommitSettlement(
	ctx context.Context,
	c *Commit,
) (*orm.Payment, error) {
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

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The coordinator checks the cap before the blocking chain
		// calls; re-checked here so racing settlements of different
		// submissions on the same bounty cannot both pass.
		if limit := c.View.Bounty.MaxSubmissions; limit > 0 {
			count := int64(0)
			if err := tx.Model(&orm.Submission{}).
				Where("bounty_id = ? AND payment_id IS NOT NULL",
					c.View.Bounty.ID,
				).
				Count(&count).
				Error; err != nil {
				return errors.Wrapf(errs.ErrInternal,
					"count paid submissions: %v", err)
			}

			if count >= int64(limit) {
				return errors.Wrap(errs.ErrInvalidState,
					"maximum payout count reached for bounty")
			}
		}

		if err := tx.Create(payment).Error; err != nil {
			var mysqlErr *gomysql.MySQLError
			if errors.As(err, &mysqlErr) &&
				mysqlErr.Number == mysqlDuplicateEntry {
				return errors.Wrap(errs.ErrConflict, "submission already settled")
			}

			return errors.Wrapf(errs.ErrInternal, "create payment: %v", err)
		}

		// Conditional write keyed on the status the settlement
		// observed. A racing review invalidates the whole unit.
		res := tx.Model(&orm.Submission{}).
			Where("id = ? AND status = ? AND payment_id IS NULL",
				c.View.Submission.ID,
				c.ObservedStatus,
			).
			Updates(map[string]interface{}{
				"status":        orm.SubmissionApproved,
				"payment_id":    payment.ID,
				"reward_amount": c.Amounts.Total,
				"reviewed_by":   c.ReviewerID,
				"reviewed_at":   now,
			})
		if res.Error != nil {
			return errors.Wrapf(errs.ErrInternal, "update submission: %v", res.Error)
		}

		if res.RowsAffected == 0 {
			return errors.Wrap(errs.ErrConflict, "submission transitioned concurrently")
		}

		return applyLedger(tx, c, payment, now)
	})
	if err != nil {
		return nil, err
	}

	return payment, nil
}
