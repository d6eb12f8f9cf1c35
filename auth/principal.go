// Package auth resolves whether an authenticated principal may
// perform an action on a submission, payment or membership. It trusts
// the identity collaborator entirely; no authentication happens here.
package auth

import (
	"github.com/photon-storage/bounty-hub/database/orm"
)

// Membership is a capability grant scoped to one company.
type Membership struct {
	CompanyID         string
	CanReviewBounty   bool
	CanApprovePayment bool
	CanManageMembers  bool
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID      string
	Role        orm.Role
	Memberships []Membership
}

func (p *Principal) membership(companyID string) *Membership {
	for i := range p.Memberships {
		if p.Memberships[i].CompanyID == companyID {
			return &p.Memberships[i]
		}
	}

	return nil
}
