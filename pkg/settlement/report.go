// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ReportSize is the encoded length: three 32-byte words.
const ReportSize = 3 * 32

var (
	ErrReportSize  = errors.New("report must be exactly 96 bytes")
	ErrReportField = errors.New("report field out of uint256 range")
)

// reportArgs is the positional tuple the receiver contract decodes:
// (uint256 auctionId, address winner, uint256 winningAmount).
var reportArgs = mustArguments("uint256", "address", "uint256")

// Report is the outcome delivered back to the auction contract.
type Report struct {
	AuctionID     *big.Int       `json:"auctionId"`
	Winner        common.Address `json:"winner"`
	WinningAmount *big.Int       `json:"winningAmount"` // minor units
}

// EncodeReport packs the report into its fixed-width big-endian form.
func EncodeReport(r Report) ([]byte, error) {
	if !inUint256(r.AuctionID) || !inUint256(r.WinningAmount) {
		return nil, ErrReportField
	}
	out, err := reportArgs.Pack(r.AuctionID, r.Winner, r.WinningAmount)
	if err != nil {
		return nil, fmt.Errorf("pack report: %w", err)
	}
	return out, nil
}

// EncodeReportHex is EncodeReport rendered as 0x-prefixed hex.
func EncodeReportHex(r Report) (string, error) {
	out, err := EncodeReport(r)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(out), nil
}

// DecodeReport is the inverse of EncodeReport.
func DecodeReport(data []byte) (Report, error) {
	if len(data) != ReportSize {
		return Report{}, fmt.Errorf("%w: got %d", ErrReportSize, len(data))
	}
	// the address word must be left-padded with zeros
	for _, b := range data[32:44] {
		if b != 0 {
			return Report{}, fmt.Errorf("%w: dirty address padding", ErrReportField)
		}
	}
	vals, err := reportArgs.Unpack(data)
	if err != nil {
		return Report{}, fmt.Errorf("unpack report: %w", err)
	}
	return Report{
		AuctionID:     vals[0].(*big.Int),
		Winner:        vals[1].(common.Address),
		WinningAmount: vals[2].(*big.Int),
	}, nil
}

// DecodeReportHex decodes a 0x-prefixed hex report.
func DecodeReportHex(s string) (Report, error) {
	data, err := hexutil.Decode(s)
	if err != nil {
		return Report{}, fmt.Errorf("decode report hex: %w", err)
	}
	return DecodeReport(data)
}

func inUint256(n *big.Int) bool {
	return n != nil && n.Sign() >= 0 && n.BitLen() <= 256
}

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}
