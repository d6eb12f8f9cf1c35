// Package escrow converts approval decisions into settled, on-chain
// verified payments.
package escrow

import (
	"math"

	"github.com/pkg/errors"

	"github.com/photon-storage/bounty-hub/errs"
)

const (
	// LamportsPerSol is the number of base units per whole display
	// unit.
	LamportsPerSol = int64(1_000_000_000)

	bpsDenominator = int64(10_000)

	// maxTotal bounds settlement amounts to the range where float64
	// conversion from display units stays exact.
	maxTotal = int64(1) << 53
)

// Amounts is the computed split of one settlement.
type Amounts struct {
	// Total is the full transfer amount leaving the escrow.
	Total int64
	// PlatformFee is floor(Total * feeBps / 10000).
	PlatformFee int64
	// Payee is Total - PlatformFee. The rounding remainder always
	// goes to the payee, so Payee + PlatformFee == Total exactly.
	Payee int64
}

// Calculate converts a display-unit reward into base units and splits
// it by the given fee rate.
func Calculate(reward float64, feeBps uint32) (Amounts, error) {
	if reward <= 0 || math.IsNaN(reward) || math.IsInf(reward, 0) {
		return Amounts{}, errors.Wrap(errs.ErrInvalidAmount, "non-positive reward")
	}

	total := int64(math.Round(reward * float64(LamportsPerSol)))
	return Split(total, feeBps)
}

// Split splits a base-unit total into platform fee and payee amount.
func Split(total int64, feeBps uint32) (Amounts, error) {
	if total <= 0 {
		return Amounts{}, errors.Wrap(errs.ErrInvalidAmount, "non-positive amount")
	}

	if total > maxTotal {
		return Amounts{}, errors.Wrap(errs.ErrInvalidAmount, "amount exceeds safe range")
	}

	if int64(feeBps) >= bpsDenominator {
		return Amounts{}, errors.Wrap(errs.ErrInvalidAmount, "fee rate out of range")
	}

	// floor(total * feeBps / 10000) without overflowing int64.
	q, r := total/bpsDenominator, total%bpsDenominator
	fee := q*int64(feeBps) + r*int64(feeBps)/bpsDenominator

	return Amounts{
		Total:       total,
		PlatformFee: fee,
		Payee:       total - fee,
	}, nil
}
