package service

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/photon-storage/bounty-hub/errs"
)

// ErrorCode assigns a stable application code to each error kind.
var ErrorCode = map[error]int{
	errs.ErrUnauthorized:      1000,
	errs.ErrNotFound:          1001,
	errs.ErrInvalidState:      1002,
	errs.ErrConflict:          1003,
	errs.ErrValidation:        1004,
	errs.ErrInvalidAmount:     1005,
	errs.ErrMissingWallet:     1006,
	errs.ErrSettlementPending: 1007,
	errs.ErrChainFailure:      1008,
	errs.ErrInternal:          1009,
}

var errorStatus = map[error]int{
	errs.ErrUnauthorized:      http.StatusForbidden,
	errs.ErrNotFound:          http.StatusNotFound,
	errs.ErrInvalidState:      http.StatusBadRequest,
	errs.ErrConflict:          http.StatusConflict,
	errs.ErrValidation:        http.StatusBadRequest,
	errs.ErrInvalidAmount:     http.StatusBadRequest,
	errs.ErrMissingWallet:     http.StatusBadRequest,
	errs.ErrSettlementPending: http.StatusConflict,
	errs.ErrChainFailure:      http.StatusBadGateway,
	errs.ErrInternal:          http.StatusInternalServerError,
}

// StatusCode resolves an error to its HTTP status and application
// code. Unclassified errors are reported as internal.
func StatusCode(err error) (int, int) {
	for kind, status := range errorStatus {
		if errors.Is(err, kind) {
			return status, ErrorCode[kind]
		}
	}

	return http.StatusInternalServerError, ErrorCode[errs.ErrInternal]
}
