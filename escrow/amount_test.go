package escrow

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/photon-storage/bounty-hub/errs"
)

func TestSplit(t *testing.T) {
	testCases := []struct {
		name    string
		total   int64
		feeBps  uint32
		want    Amounts
		wantErr error
	}{
		{
			name:   "standard fee rate",
			total:  10 * LamportsPerSol,
			feeBps: 200,
			want: Amounts{
				Total:       10_000_000_000,
				PlatformFee: 200_000_000,
				Payee:       9_800_000_000,
			},
		},
		{
			name:   "elevated fee rate",
			total:  10 * LamportsPerSol,
			feeBps: 250,
			want: Amounts{
				Total:       10_000_000_000,
				PlatformFee: 250_000_000,
				Payee:       9_750_000_000,
			},
		},
		{
			name:   "fee rounds down and remainder goes to payee",
			total:  9_999,
			feeBps: 200,
			want: Amounts{
				Total:       9_999,
				PlatformFee: 199,
				Payee:       9_800,
			},
		},
		{
			name:   "one lamport",
			total:  1,
			feeBps: 200,
			want: Amounts{
				Total:       1,
				PlatformFee: 0,
				Payee:       1,
			},
		},
		{
			name:   "zero fee rate",
			total:  5 * LamportsPerSol,
			feeBps: 0,
			want: Amounts{
				Total:       5_000_000_000,
				PlatformFee: 0,
				Payee:       5_000_000_000,
			},
		},
		{
			name:    "zero amount",
			total:   0,
			feeBps:  200,
			wantErr: errs.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			total:   -1,
			feeBps:  200,
			wantErr: errs.ErrInvalidAmount,
		},
		{
			name:    "amount above safe range",
			total:   maxTotal + 1,
			feeBps:  200,
			wantErr: errs.ErrInvalidAmount,
		},
		{
			name:    "fee rate of one hundred percent",
			total:   LamportsPerSol,
			feeBps:  10_000,
			wantErr: errs.ErrInvalidAmount,
		},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Split(c.total, c.feeBps)
			if c.wantErr != nil {
				require.True(t, errors.Is(err, c.wantErr))
				return
			}

			require.NoError(t, err)
			require.Equal(t, c.want, got)
			require.Equal(t, got.Total, got.PlatformFee+got.Payee)
		})
	}
}

func TestSplitConservation(t *testing.T) {
	// The fee split never creates or destroys lamports, whatever the
	// remainder.
	for total := int64(1); total < 20_000; total += 7 {
		for _, feeBps := range []uint32{0, 1, 200, 250, 9_999} {
			got, err := Split(total, feeBps)
			require.NoError(t, err)
			require.Equal(t, total, got.PlatformFee+got.Payee)
			require.GreaterOrEqual(t, got.PlatformFee, int64(0))
			require.Greater(t, got.Payee, int64(0))
		}
	}
}

func TestCalculate(t *testing.T) {
	got, err := Calculate(10.0, 250)
	require.NoError(t, err)
	require.Equal(t, int64(10_000_000_000), got.Total)
	require.Equal(t, int64(250_000_000), got.PlatformFee)
	require.Equal(t, int64(9_750_000_000), got.Payee)

	got, err = Calculate(0.5, 200)
	require.NoError(t, err)
	require.Equal(t, int64(500_000_000), got.Total)
	require.Equal(t, int64(10_000_000), got.PlatformFee)

	_, err = Calculate(0, 200)
	require.True(t, errors.Is(err, errs.ErrInvalidAmount))

	_, err = Calculate(-1.5, 200)
	require.True(t, errors.Is(err, errs.ErrInvalidAmount))
}

func TestFormatSol(t *testing.T) {
	require.Equal(t, "10", FormatSol(10*LamportsPerSol))
	require.Equal(t, "9.75", FormatSol(9_750_000_000))
	require.Equal(t, "0.000000001", FormatSol(1))
	require.Equal(t, "1.5", FormatSol(1_500_000_000))
}
