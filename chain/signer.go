package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/photon-storage/bounty-hub/errs"
)

// Signer error codes reported by the external signer service.
const (
	signerCodeWalletMismatch    = "WALLET_MISMATCH"
	signerCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	signerCodeUserCancelled     = "USER_CANCELLED"
)

// TransferRequest describes one escrow transfer for the external
// signer to construct, sign and submit.
type TransferRequest struct {
	FromEscrow  string `json:"from_escrow"`
	ToWallet    string `json:"to_wallet"`
	Amount      int64  `json:"amount"`
	PlatformFee int64  `json:"platform_fee"`
}

// Signer submits escrow transfers through an external signer service.
// The service holds the keys; this client never sees them.
type Signer struct {
	endpoint string
	timeout  time.Duration
}

// NewSigner returns a new signer client instance.
func NewSigner(endpoint string, timeout time.Duration) *Signer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Signer{
		endpoint: endpoint,
		timeout:  timeout,
	}
}

type transferResp struct {
	Code        string `json:"code"`
	Msg         string `json:"msg"`
	TxSignature string `json:"tx_signature"`
}

// SubmitTransfer requests the signer service to construct and submit
// the transfer and returns the transaction signature. Submission is
// not idempotent; callers must not retry a timed-out submit with the
// expectation that funds moved at most once.
func (s *Signer) SubmitTransfer(
	ctx context.Context,
	req *TransferRequest,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.endpoint+"/v1/transfer",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	client := &http.Client{}
	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Wrap(errs.ErrChainFailure, "signer network timeout")
		}

		return "", errors.Wrap(errs.ErrChainFailure, err.Error())
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errs.ErrChainFailure, err.Error())
	}

	tr := &transferResp{}
	if err := json.Unmarshal(respBody, tr); err != nil {
		return "", errors.Wrap(errs.ErrChainFailure, err.Error())
	}

	switch tr.Code {
	case "":
	case signerCodeWalletMismatch:
		return "", errors.Wrap(errs.ErrMissingWallet, "signer wallet mismatch")
	case signerCodeInsufficientFunds:
		return "", errors.Wrap(errs.ErrChainFailure, "insufficient escrow funds")
	case signerCodeUserCancelled:
		return "", errors.Wrap(errs.ErrChainFailure, "transfer cancelled by signer")
	default:
		return "", errors.Wrapf(errs.ErrChainFailure, "signer error %s: %s", tr.Code, tr.Msg)
	}

	if tr.TxSignature == "" {
		return "", errors.Wrap(errs.ErrChainFailure, "signer returned empty signature")
	}

	return tr.TxSignature, nil
}
