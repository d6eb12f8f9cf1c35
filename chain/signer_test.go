package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/photon-storage/bounty-hub/errs"
)

func TestSubmitTransfer(t *testing.T) {
	testCases := []struct {
		name    string
		resp    string
		want    string
		wantErr error
	}{
		{
			name: "submitted transfer",
			resp: `{"tx_signature":"sig-1"}`,
			want: "sig-1",
		},
		{
			name:    "wallet mismatch",
			resp:    `{"code":"WALLET_MISMATCH","msg":"wrong wallet"}`,
			wantErr: errs.ErrMissingWallet,
		},
		{
			name:    "insufficient funds",
			resp:    `{"code":"INSUFFICIENT_FUNDS","msg":"escrow empty"}`,
			wantErr: errs.ErrChainFailure,
		},
		{
			name:    "cancelled by signer",
			resp:    `{"code":"USER_CANCELLED","msg":"operator declined"}`,
			wantErr: errs.ErrChainFailure,
		},
		{
			name:    "unknown error code",
			resp:    `{"code":"RATE_LIMITED","msg":"slow down"}`,
			wantErr: errs.ErrChainFailure,
		},
		{
			name:    "empty signature",
			resp:    `{}`,
			wantErr: errs.ErrChainFailure,
		},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					require.Equal(t, "/v1/transfer", r.URL.Path)

					req := &TransferRequest{}
					require.NoError(t, json.NewDecoder(r.Body).Decode(req))
					require.Equal(t, int64(10_000_000_000), req.Amount)

					w.Write([]byte(c.resp))
				},
			))
			defer server.Close()

			got, err := NewSigner(server.URL, 0).SubmitTransfer(
				context.Background(),
				&TransferRequest{
					FromEscrow:  "escrow-1",
					ToWallet:    "wallet-1",
					Amount:      10_000_000_000,
					PlatformFee: 200_000_000,
				},
			)
			if c.wantErr != nil {
				require.True(t, errors.Is(err, c.wantErr))
				return
			}

			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestSubmitTransferTimeout(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			<-blocked
		},
	))
	defer server.Close()
	defer close(blocked)

	_, err := NewSigner(server.URL, 50*time.Millisecond).SubmitTransfer(
		context.Background(),
		&TransferRequest{
			FromEscrow: "escrow-1",
			ToWallet:   "wallet-1",
			Amount:     1,
		},
	)
	require.True(t, errors.Is(err, errs.ErrChainFailure))
}
