package service

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/photon-storage/bounty-hub/api/pagination"
	"github.com/photon-storage/bounty-hub/auth"
	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
	"github.com/photon-storage/bounty-hub/escrow"
)

type paymentResp struct {
	ID            string `json:"id"`
	SubmissionID  string `json:"submission_id"`
	UserID        string `json:"user_id"`
	CompanyID     string `json:"company_id"`
	Amount        string `json:"amount"`
	PlatformFee   string `json:"platform_fee"`
	NetAmount     string `json:"net_amount"`
	TxSignature   string `json:"tx_signature"`
	FromWallet    string `json:"from_wallet"`
	ToWallet      string `json:"to_wallet"`
	Confirmations uint64 `json:"confirmations"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	CompletedAt   int64  `json:"completed_at,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

func newPaymentResp(payment *orm.Payment) *paymentResp {
	resp := &paymentResp{
		ID:            payment.ID,
		SubmissionID:  payment.SubmissionID,
		UserID:        payment.UserID,
		CompanyID:     payment.CompanyID,
		Amount:        escrow.FormatSol(payment.Amount),
		PlatformFee:   escrow.FormatSol(payment.PlatformFee),
		NetAmount:     escrow.FormatSol(payment.NetAmount),
		TxSignature:   payment.TxSignature,
		FromWallet:    payment.FromWallet,
		ToWallet:      payment.ToWallet,
		Confirmations: payment.Confirmations,
		Status:        payment.Status.String(),
		FailureReason: payment.FailureReason,
		CreatedAt:     payment.CreatedAt.Unix(),
	}

	if payment.CompletedAt != nil {
		resp.CompletedAt = payment.CompletedAt.Unix()
	}

	return resp
}

type confirmSettlementReq struct {
	SubmissionID string `json:"submission_id" binding:"required"`
	TxSignature  string `json:"tx_signature" binding:"required,b58sig"`
}

// ConfirmSettlement handles the POST /payment/confirm request. It
// records a payment for an approved transfer that was signed and
// submitted out-of-band, verifying the transaction on chain first.
func (s *Service) ConfirmSettlement(
	c *gin.Context,
	req *confirmSettlementReq,
) (*paymentResp, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	payment, err := s.coordinator.Confirm(
		c.Request.Context(),
		req.SubmissionID,
		req.TxSignature,
		principal,
	)
	if err != nil {
		return nil, err
	}

	return newPaymentResp(payment), nil
}

// Payments handles the /payments request.
func (s *Service) Payments(
	c *gin.Context,
	page *pagination.Query,
) (*pagination.Result, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	query := s.db.Model(&orm.Payment{})
	if status := c.Query("status"); status != "" {
		st := orm.StrToPaymentStatus(status)
		if st == 0 {
			return nil, errors.Wrap(errs.ErrValidation, "unknown status")
		}

		query = query.Where("status = ?", st)
	}

	if companyID := c.Query("company_id"); companyID != "" {
		if !auth.CanAct(principal, auth.ActionApprovePayment, auth.Resource{
			CompanyID: companyID,
		}) {
			return nil, errs.ErrUnauthorized
		}

		query = query.Where("company_id = ?", companyID)
	} else if principal.Role != orm.RoleAdmin {
		query = query.Where("user_id = ?", principal.UserID)
	}

	count := int64(0)
	if err := query.Count(&count).Error; err != nil {
		return nil, err
	}

	payments := make([]*orm.Payment, 0)
	if err := query.Offset(page.Start).
		Limit(page.Limit).
		Order("created_at desc").
		Find(&payments).
		Error; err != nil {
		return nil, err
	}

	paymentResps := make([]*paymentResp, len(payments))
	for i, payment := range payments {
		paymentResps[i] = newPaymentResp(payment)
	}

	return &pagination.Result{
		Data:  paymentResps,
		Total: count,
	}, nil
}

// Payment handles the /payment request.
func (s *Service) Payment(c *gin.Context) (*paymentResp, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	id := c.Query("id")
	if id == "" {
		return nil, errors.Wrap(errs.ErrValidation, "missing payment id")
	}

	payment := &orm.Payment{}
	if err := s.db.Model(&orm.Payment{}).
		Where("id = ?", id).
		First(payment).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}

	if payment.UserID != principal.UserID &&
		!auth.CanAct(principal, auth.ActionApprovePayment, auth.Resource{
			CompanyID: payment.CompanyID,
		}) {
		return nil, errs.ErrUnauthorized
	}

	return newPaymentResp(payment), nil
}

type verifyPaymentReq struct {
	ID string `json:"id" binding:"required"`
}

// VerifyPayment handles the POST /payment/verify request. It refreshes
// the confirmation count of a recorded payment from the chain and
// promotes it to COMPLETED once confirmed.
func (s *Service) VerifyPayment(
	c *gin.Context,
	req *verifyPaymentReq,
) (*paymentResp, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	payment := &orm.Payment{}
	if err := s.db.Model(&orm.Payment{}).
		Where("id = ?", req.ID).
		First(payment).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}

	if !auth.CanAct(principal, auth.ActionApprovePayment, auth.Resource{
		CompanyID: payment.CompanyID,
	}) {
		return nil, errs.ErrUnauthorized
	}

	if payment.Status == orm.PaymentCompleted {
		return newPaymentResp(payment), nil
	}

	confirmations, err := s.node.Confirmations(
		c.Request.Context(),
		payment.TxSignature,
	)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errors.Wrap(errs.ErrSettlementPending,
				"transaction not yet visible on chain")
		}

		return nil, err
	}

	fields := map[string]interface{}{
		"confirmations": confirmations,
	}
	if confirmations >= 1 {
		fields["status"] = orm.PaymentCompleted
		fields["completed_at"] = gorm.Expr("NOW()")
	}

	// Conditioned on the observed status so a racing watcher tick
	// cannot be overwritten; a FAILED or REFUNDED payment is never
	// promoted. The re-read below returns whichever write won.
	if err := s.db.Model(&orm.Payment{}).
		Where("id = ? AND status = ?", payment.ID, payment.Status).
		Updates(fields).
		Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&orm.Payment{}).
		Where("id = ?", payment.ID).
		First(payment).
		Error; err != nil {
		return nil, err
	}

	return newPaymentResp(payment), nil
}
