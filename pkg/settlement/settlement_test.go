// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		err  error
	}{
		{in: "1200", want: 1_200_000_000},
		{in: "250.00", want: 250_000_000},
		{in: "0.000001", want: 1},
		{in: "-3", want: -3_000_000},
		{in: "0.0000001", err: ErrPrecision},
		{in: "12abc", err: ErrInvalidAmount},
		{in: "", err: ErrInvalidAmount},
		{in: "1.5e3", want: 1_500_000_000},
		{in: "1e80", err: ErrAmountRange},
		{in: "1e200000000", err: ErrAmountRange},
		{in: "1e-200000000", err: ErrPrecision},
		{in: "115792089237316195423570985008687907853269984665640564039457.584007913129639936", err: ErrAmountRange},
		{in: strings.Repeat("9", 97), err: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestParseAmountLargestReportable(t *testing.T) {
	require := require.New(t)

	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	got, err := ParseAmount("115792089237316195423570985008687907853269984665640564039457.584007913129639935")
	require.NoError(err)
	require.Equal(maxUint256, got)
	require.True(InReportRange(got))
	require.False(InReportRange(new(big.Int).Add(got, big.NewInt(1))))
}

func TestParseAmountBoundsExponentWork(t *testing.T) {
	require := require.New(t)

	start := time.Now()
	for _, in := range []string{"1e200000000", "-9e2147483647", "1e-2147483647"} {
		_, err := ParseAmount(in)
		require.Error(err)
	}
	require.Less(time.Since(start), time.Second)
}

func TestFormatAmount(t *testing.T) {
	require := require.New(t)

	require.Equal("250", FormatAmount(big.NewInt(250_000_000)))
	require.Equal("1200.5", FormatAmount(big.NewInt(1_200_500_000)))
	require.Equal("0", FormatAmount(nil))
	require.Equal(int64(1_500_000_000), ToMinor(1500).Int64())
}

func TestEncodeReportLayout(t *testing.T) {
	require := require.New(t)

	winner := common.HexToAddress("0xabc0000000000000000000000000000000000123")
	r := Report{
		AuctionID:     big.NewInt(7),
		Winner:        winner,
		WinningAmount: big.NewInt(250_000000),
	}

	out, err := EncodeReport(r)
	require.NoError(err)
	require.Len(out, ReportSize)

	require.Equal(byte(7), out[31])
	require.Equal(make([]byte, 12), out[32:44])
	require.Equal(winner.Bytes(), out[44:64])
	require.Equal(big.NewInt(250_000000), new(big.Int).SetBytes(out[64:96]))

	hex, err := EncodeReportHex(r)
	require.NoError(err)
	require.True(strings.HasPrefix(hex, "0x"))
	require.Len(hex, 2+2*ReportSize)
}

func TestReportRoundTrip(t *testing.T) {
	require := require.New(t)

	maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	cases := []Report{
		{AuctionID: big.NewInt(0), Winner: common.Address{}, WinningAmount: big.NewInt(0)},
		{AuctionID: big.NewInt(7), Winner: common.HexToAddress("0xabc0000000000000000000000000000000000123"), WinningAmount: big.NewInt(250_000000)},
		{AuctionID: maxU256, Winner: common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"), WinningAmount: maxU256},
	}

	for _, want := range cases {
		hex, err := EncodeReportHex(want)
		require.NoError(err)

		got, err := DecodeReportHex(hex)
		require.NoError(err)
		require.Zero(want.AuctionID.Cmp(got.AuctionID))
		require.Equal(want.Winner, got.Winner)
		require.Zero(want.WinningAmount.Cmp(got.WinningAmount))
	}
}

func TestEncodeReportRejectsOutOfRange(t *testing.T) {
	require := require.New(t)

	_, err := EncodeReport(Report{AuctionID: big.NewInt(-1), WinningAmount: big.NewInt(1)})
	require.ErrorIs(err, ErrReportField)

	_, err = EncodeReport(Report{AuctionID: big.NewInt(1)})
	require.ErrorIs(err, ErrReportField)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = EncodeReport(Report{AuctionID: big.NewInt(1), WinningAmount: tooBig})
	require.ErrorIs(err, ErrReportField)
}

func TestDecodeReportRejectsBadInput(t *testing.T) {
	require := require.New(t)

	_, err := DecodeReport(make([]byte, 64))
	require.ErrorIs(err, ErrReportSize)

	dirty := make([]byte, ReportSize)
	dirty[32] = 1
	_, err = DecodeReport(dirty)
	require.ErrorIs(err, ErrReportField)
}

func BenchmarkEncodeReport(b *testing.B) {
	r := Report{
		AuctionID:     big.NewInt(7),
		Winner:        common.HexToAddress("0xabc0000000000000000000000000000000000123"),
		WinningAmount: big.NewInt(250_000000),
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = EncodeReport(r)
	}
}
