package orm

import "time"

// PaymentStatus represents payment settlement status
type PaymentStatus uint8

const (
	PaymentPending PaymentStatus = iota + 1
	PaymentProcessing
	PaymentCompleted
	PaymentFailed
	PaymentRefunded
)

var (
	paymentStatusValue = map[PaymentStatus]string{
		PaymentPending:    "PENDING",
		PaymentProcessing: "PROCESSING",
		PaymentCompleted:  "COMPLETED",
		PaymentFailed:     "FAILED",
		PaymentRefunded:   "REFUNDED",
	}

	paymentValueStatus = map[string]PaymentStatus{
		"PENDING":    PaymentPending,
		"PROCESSING": PaymentProcessing,
		"COMPLETED":  PaymentCompleted,
		"FAILED":     PaymentFailed,
		"REFUNDED":   PaymentRefunded,
	}
)

// StrToPaymentStatus converts status string to payment status
func StrToPaymentStatus(str string) PaymentStatus {
	return paymentValueStatus[str]
}

// String returns the string of payment status
func (s PaymentStatus) String() string {
	if _, ok := paymentStatusValue[s]; !ok {
		return "unknown"
	}

	return paymentStatusValue[s]
}

// Payment is a gorm table definition represents one settlement record.
// The unique index on SubmissionID enforces at most one payment per
// submission. Rows are immutable after creation except for status and
// confirmation updates driven by chain verification.
type Payment struct {
	ID            string `gorm:"primary_key;size:36"`
	SubmissionID  string `gorm:"size:36;uniqueIndex"`
	UserID        string `gorm:"size:36;index"`
	CompanyID     string `gorm:"size:36;index"`
	Amount        int64
	PlatformFee   int64
	NetAmount     int64
	TxSignature   string `gorm:"size:128;index"`
	FromWallet    string
	ToWallet      string
	Confirmations uint64
	Status        PaymentStatus
	FailureReason string
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
