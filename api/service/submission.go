package service

import (
	"math"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/photon-storage/bounty-hub/advisory"
	"github.com/photon-storage/bounty-hub/api/pagination"
	"github.com/photon-storage/bounty-hub/auth"
	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
	"github.com/photon-storage/bounty-hub/escrow"
	"github.com/photon-storage/bounty-hub/review"
)

type baseSubmission struct {
	ID        string `json:"id"`
	BountyID  string `json:"bounty_id"`
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Severity  string `json:"severity"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

func newBaseSubmission(sub *orm.Submission) *baseSubmission {
	return &baseSubmission{
		ID:        sub.ID,
		BountyID:  sub.BountyID,
		CompanyID: sub.CompanyID,
		UserID:    sub.UserID,
		Title:     sub.Title,
		Severity:  sub.Severity,
		Status:    sub.Status.String(),
		CreatedAt: sub.CreatedAt.Unix(),
	}
}

// Submissions handles the /submissions request. Reviewers see their
// company's queue; hunters see their own reports.
func (s *Service) Submissions(
	c *gin.Context,
	page *pagination.Query,
) (*pagination.Result, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	query := s.db.Model(&orm.Submission{})
	if bountyID := c.Query("bounty_id"); bountyID != "" {
		query = query.Where("bounty_id = ?", bountyID)
	}

	if status := c.Query("status"); status != "" {
		st := orm.StrToSubmissionStatus(status)
		if st == 0 {
			return nil, errors.Wrap(errs.ErrValidation, "unknown status")
		}

		query = query.Where("status = ?", st)
	}

	if companyID := c.Query("company_id"); companyID != "" {
		if !auth.CanAct(principal, auth.ActionReview, auth.Resource{
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

	subs := make([]*orm.Submission, 0)
	if err := query.Offset(page.Start).
		Limit(page.Limit).
		Order("created_at desc").
		Find(&subs).
		Error; err != nil {
		return nil, err
	}

	baseSubmissions := make([]*baseSubmission, len(subs))
	for i, sub := range subs {
		baseSubmissions[i] = newBaseSubmission(sub)
	}

	return &pagination.Result{
		Data:  baseSubmissions,
		Total: count,
	}, nil
}

type submissionResp struct {
	*baseSubmission
	Description     string          `json:"description"`
	RewardAmount    string          `json:"reward_amount,omitempty"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	ReviewedAt      int64           `json:"reviewed_at,omitempty"`
	ReviewNotes     string          `json:"review_notes,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	PaymentID       string          `json:"payment_id,omitempty"`
	Advisory        *advisory.Score `json:"advisory,omitempty"`
}

func newSubmissionResp(sub *orm.Submission) *submissionResp {
	resp := &submissionResp{
		baseSubmission: newBaseSubmission(sub),
		Description:    sub.Description,
		ReviewNotes:    sub.ReviewNotes,
	}

	if sub.RewardAmount != nil {
		resp.RewardAmount = escrow.FormatSol(*sub.RewardAmount)
	}

	if sub.ReviewedBy != nil {
		resp.ReviewedBy = *sub.ReviewedBy
	}

	if sub.ReviewedAt != nil {
		resp.ReviewedAt = sub.ReviewedAt.Unix()
	}

	if sub.Status == orm.SubmissionRejected {
		resp.RejectionReason = sub.RejectionReason
	}

	if sub.PaymentID != nil {
		resp.PaymentID = *sub.PaymentID
	}

	return resp
}

// Submission handles the /submission request.
func (s *Service) Submission(c *gin.Context) (*submissionResp, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	id := c.Query("id")
	if id == "" {
		return nil, errors.Wrap(errs.ErrValidation, "missing submission id")
	}

	sub := &orm.Submission{}
	if err := s.db.Model(&orm.Submission{}).
		Where("id = ?", id).
		First(sub).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}

	isAuthor := sub.UserID == principal.UserID
	isReviewer := auth.CanAct(principal, auth.ActionReview, auth.Resource{
		CompanyID: sub.CompanyID,
	})
	if !isAuthor && !isReviewer {
		return nil, errs.ErrUnauthorized
	}

	resp := newSubmissionResp(sub)
	// The advisory score is a reviewer-only hint and never gates
	// anything.
	if isReviewer && sub.Status.Reviewable() {
		resp.Advisory = s.advisor.Score(c.Request.Context(), sub.ID)
	}

	return resp, nil
}

type createSubmissionReq struct {
	BountyID    string `json:"bounty_id" binding:"required"`
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"required"`
	Severity    string `json:"severity" binding:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
}

// CreateSubmission handles the POST /submissions request.
func (s *Service) CreateSubmission(
	c *gin.Context,
	req *createSubmissionReq,
) (*submissionResp, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	bounty := &orm.Bounty{}
	if err := s.db.Model(&orm.Bounty{}).
		Where("id = ?", req.BountyID).
		First(bounty).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}

	sub := &orm.Submission{
		ID:          uuid.NewString(),
		BountyID:    bounty.ID,
		CompanyID:   bounty.CompanyID,
		UserID:      principal.UserID,
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		Status:      orm.SubmissionPending,
	}
	if err := s.db.Create(sub).Error; err != nil {
		return nil, err
	}

	return newSubmissionResp(sub), nil
}

type updateSubmissionReq struct {
	ID          string `json:"id" binding:"required"`
	Title       string `json:"title" binding:"omitempty,max=200"`
	Description string `json:"description"`
	Severity    string `json:"severity" binding:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
}

// UpdateSubmission handles the POST /submission/update request.
func (s *Service) UpdateSubmission(
	c *gin.Context,
	req *updateSubmissionReq,
) (*submissionResp, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	sub, err := s.machine.UpdateOwn(
		c.Request.Context(),
		req.ID,
		principal,
		req.Title,
		req.Description,
		req.Severity,
	)
	if err != nil {
		return nil, err
	}

	return newSubmissionResp(sub), nil
}

type deleteSubmissionReq struct {
	ID string `json:"id" binding:"required"`
}

// DeleteSubmission handles the POST /submission/delete request.
func (s *Service) DeleteSubmission(
	c *gin.Context,
	req *deleteSubmissionReq,
) error {
	principal, ok := auth.FromContext(c)
	if !ok {
		return errs.ErrUnauthorized
	}

	return s.machine.DeleteOwn(c.Request.Context(), req.ID, principal)
}

type reviewSubmissionReq struct {
	ID       string `json:"id" binding:"required"`
	Decision string `json:"decision" binding:"required,oneof=APPROVE REJECT DUPLICATE SPAM NEEDS_MORE_INFO"`
	// RewardAmount optionally overrides the bounty reward for
	// APPROVE, in display units.
	RewardAmount    float64 `json:"reward_amount" binding:"omitempty,gt=0"`
	RejectionReason string  `json:"rejection_reason"`
	Message         string  `json:"message"`
	Notes           string  `json:"notes"`
}

// ReviewSubmission handles the POST /submission/review request.
func (s *Service) ReviewSubmission(
	c *gin.Context,
	req *reviewSubmissionReq,
) (*submissionResp, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	override := int64(0)
	if req.RewardAmount > 0 {
		override = int64(math.Round(
			req.RewardAmount * float64(escrow.LamportsPerSol),
		))
	}

	sub, err := s.machine.RequestReview(
		c.Request.Context(),
		req.ID,
		principal,
		review.StrToDecision(req.Decision),
		review.Payload{
			RejectionReason: req.RejectionReason,
			Message:         req.Message,
			Notes:           req.Notes,
			RewardOverride:  override,
		},
	)
	if err != nil {
		return nil, err
	}

	return newSubmissionResp(sub), nil
}
