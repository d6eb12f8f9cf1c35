package auth

import "github.com/photon-storage/bounty-hub/database/orm"

// Action is a guarded operation kind.
type Action uint8

const (
	// ActionReview covers review decisions on submissions.
	ActionReview Action = iota + 1
	// ActionApprovePayment covers settlement and payment edits.
	ActionApprovePayment
	// ActionManageMembers covers membership changes.
	ActionManageMembers
	// ActionEditOwnSubmission covers author self-service edits.
	ActionEditOwnSubmission
	// ActionDeleteOwnSubmission covers author self-service deletes.
	ActionDeleteOwnSubmission
)

// Resource identifies the target of a guarded action.
type Resource struct {
	// CompanyID owning the submission, payment or membership.
	CompanyID string
	// AuthorID is the submission author for self-service actions.
	AuthorID string
	// TargetUserID is the user whose membership row a manage-members
	// action would change.
	TargetUserID string
}

// CanAct reports whether the principal may perform the action on the
// resource. Deny is the default; absence of an explicit allow is a
// deny.
func CanAct(p *Principal, action Action, res Resource) bool {
	if p == nil {
		return false
	}

	// Principals never modify their own membership row or remove
	// themselves from a company, regardless of role.
	if action == ActionManageMembers &&
		res.TargetUserID != "" &&
		res.TargetUserID == p.UserID {
		return false
	}

	if p.Role == orm.RoleAdmin {
		return true
	}

	switch action {
	case ActionReview:
		m := p.membership(res.CompanyID)
		return m != nil && m.CanReviewBounty

	case ActionApprovePayment:
		m := p.membership(res.CompanyID)
		return m != nil && m.CanApprovePayment

	case ActionManageMembers:
		m := p.membership(res.CompanyID)
		return m != nil && m.CanManageMembers

	case ActionEditOwnSubmission, ActionDeleteOwnSubmission:
		return res.AuthorID != "" && res.AuthorID == p.UserID
	}

	return false
}
