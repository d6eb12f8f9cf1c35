package escrow

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
)

// applyLedger writes the full reconciliation delta set of one
// settlement inside the commit transaction. It is the only code path
// allowed to touch these aggregates, which keeps the ledger and the
// counters from drifting apart.
func applyLedger(
	tx *gorm.DB,
	c *Commit,
	payment *orm.Payment,
	now time.Time,
) error {
	if err := tx.Model(&orm.Bounty{}).
		Where("id = ?", c.View.Bounty.ID).
		Updates(map[string]interface{}{
			"paid_out":          gorm.Expr("paid_out + ?", c.Amounts.Total),
			"valid_submissions": gorm.Expr("valid_submissions + 1"),
		}).Error; err != nil {
		return errors.Wrapf(errs.ErrInternal, "update bounty totals: %v", err)
	}

	if err := tx.Model(&orm.Company{}).
		Where("id = ?", c.View.Company.ID).
		Updates(map[string]interface{}{
			"total_bounties_paid":      gorm.Expr("total_bounties_paid + ?", c.Amounts.Total),
			"resolved_vulnerabilities": gorm.Expr("resolved_vulnerabilities + 1"),
		}).Error; err != nil {
		return errors.Wrapf(errs.ErrInternal, "update company totals: %v", err)
	}

	if err := tx.Model(&orm.User{}).
		Where("id = ?", c.View.Payee.ID).
		Updates(map[string]interface{}{
			"total_earnings": gorm.Expr("total_earnings + ?", c.Amounts.Payee),
			"total_bounties": gorm.Expr("total_bounties + 1"),
		}).Error; err != nil {
		return errors.Wrapf(errs.ErrInternal, "update payee totals: %v", err)
	}

	newValue, err := json.Marshal(map[string]interface{}{
		"tx_signature": payment.TxSignature,
		"submission":   payment.SubmissionID,
		"amount":       c.Amounts.Total,
		"platform_fee": c.Amounts.PlatformFee,
		"payee_amount": c.Amounts.Payee,
	})
	if err != nil {
		return errors.Wrapf(errs.ErrInternal, "marshal audit value: %v", err)
	}

	if err := tx.Create(&orm.AuditLog{
		ActorID:    c.ReviewerID,
		Action:     "PAYMENT_CONFIRMED",
		EntityType: "PAYMENT",
		EntityID:   payment.ID,
		OldValue:   c.View.Submission.Status.String(),
		NewValue:   string(newValue),
		CreatedAt:  now,
	}).Error; err != nil {
		return errors.Wrapf(errs.ErrInternal, "append audit log: %v", err)
	}

	return nil
}
