package orm

import "time"

// SubmissionStatus represents submission review status
type SubmissionStatus uint8

const (
	SubmissionPending SubmissionStatus = iota + 1
	SubmissionApproved
	SubmissionRejected
	SubmissionDuplicate
	SubmissionSpam
	SubmissionNeedsMoreInfo
)

var (
	submissionStatusValue = map[SubmissionStatus]string{
		SubmissionPending:       "PENDING",
		SubmissionApproved:      "APPROVED",
		SubmissionRejected:      "REJECTED",
		SubmissionDuplicate:     "DUPLICATE",
		SubmissionSpam:          "SPAM",
		SubmissionNeedsMoreInfo: "NEEDS_MORE_INFO",
	}

	submissionValueStatus = map[string]SubmissionStatus{
		"PENDING":         SubmissionPending,
		"APPROVED":        SubmissionApproved,
		"REJECTED":        SubmissionRejected,
		"DUPLICATE":       SubmissionDuplicate,
		"SPAM":            SubmissionSpam,
		"NEEDS_MORE_INFO": SubmissionNeedsMoreInfo,
	}
)

// StrToSubmissionStatus converts status string to submission status
func StrToSubmissionStatus(str string) SubmissionStatus {
	return submissionValueStatus[str]
}

// String returns the string of submission status
func (s SubmissionStatus) String() string {
	if _, ok := submissionStatusValue[s]; !ok {
		return "unknown"
	}

	return submissionStatusValue[s]
}

// Terminal reports whether no further review decision is possible.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case SubmissionApproved, SubmissionRejected,
		SubmissionDuplicate, SubmissionSpam:
		return true
	}

	return false
}

// Reviewable reports whether a reviewer may decide on the submission.
// NEEDS_MORE_INFO is re-reviewable exactly as if it were PENDING.
func (s SubmissionStatus) Reviewable() bool {
	return s == SubmissionPending || s == SubmissionNeedsMoreInfo
}

// Submission is a gorm table definition represents the vulnerability
// reports filed against bounties.
type Submission struct {
	ID              string `gorm:"primary_key;size:36"`
	BountyID        string `gorm:"size:36;index"`
	UserID          string `gorm:"size:36;index"`
	CompanyID       string `gorm:"size:36;index"`
	Title           string
	Description     string `gorm:"type:text"`
	Severity        string
	Status          SubmissionStatus
	// RewardAmount is the fixed reward snapshot in lamports, set at
	// review time. Nil until a reviewer fixes it.
	RewardAmount    *int64
	ReviewedBy      *string `gorm:"size:36"`
	ReviewedAt      *time.Time
	ReviewNotes     string `gorm:"type:text"`
	RejectionReason string `gorm:"type:text"`
	// PaymentID goes from null to non-null exactly once, when the
	// submission is approved and settled. It is never cleared.
	PaymentID *string `gorm:"size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
