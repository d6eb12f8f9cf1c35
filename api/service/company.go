package service

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/photon-storage/bounty-hub/auth"
	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
	"github.com/photon-storage/bounty-hub/escrow"
)

type companyStatsResp struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	TotalBountiesPaid       string `json:"total_bounties_paid"`
	ResolvedVulnerabilities uint64 `json:"resolved_vulnerabilities"`
	OpenSubmissions         int64  `json:"open_submissions"`
	EscrowBalance           string `json:"escrow_balance,omitempty"`
}

// CompanyStats handles the /company/stats request. The aggregate
// totals come from the reconciliation ledger and are consistent with
// the recorded payments.
func (s *Service) CompanyStats(c *gin.Context) (*companyStatsResp, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	id := c.Query("id")
	if id == "" {
		return nil, errors.Wrap(errs.ErrValidation, "missing company id")
	}

	if !auth.CanAct(principal, auth.ActionReview, auth.Resource{
		CompanyID: id,
	}) {
		return nil, errs.ErrUnauthorized
	}

	company := &orm.Company{}
	if err := s.db.Model(&orm.Company{}).
		Where("id = ?", id).
		First(company).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}

	open := int64(0)
	if err := s.db.Model(&orm.Submission{}).
		Where("company_id = ? AND status IN ?",
			id,
			[]orm.SubmissionStatus{
				orm.SubmissionPending,
				orm.SubmissionNeedsMoreInfo,
			},
		).
		Count(&open).
		Error; err != nil {
		return nil, err
	}

	resp := &companyStatsResp{
		ID:                      company.ID,
		Name:                    company.Name,
		TotalBountiesPaid:       escrow.FormatSol(company.TotalBountiesPaid),
		ResolvedVulnerabilities: company.ResolvedVulnerabilities,
		OpenSubmissions:         open,
	}

	// Escrow balances are aggregated across the company's bounties
	// straight from the chain. A node error degrades to omitting the
	// field rather than failing the request.
	bounties := make([]*orm.Bounty, 0)
	if err := s.db.Model(&orm.Bounty{}).
		Where("company_id = ? AND escrow_address != ''", id).
		Find(&bounties).
		Error; err != nil {
		return nil, err
	}

	total := int64(0)
	complete := true
	for _, bounty := range bounties {
		balance, err := s.node.EscrowBalance(
			c.Request.Context(),
			bounty.EscrowAddress,
		)
		if err != nil {
			complete = false
			break
		}

		total += balance
	}

	if complete {
		resp.EscrowBalance = escrow.FormatSol(total)
	}

	return resp, nil
}
