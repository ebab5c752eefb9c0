// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidID      = errors.New("invalid id")
)

// auctionNamespace scopes deterministic auction ids derived from on-chain ids.
var auctionNamespace = uuid.MustParse("6f3c2b1e-4d8a-5c7e-9b2f-1a0e8d7c6b5a")

// NewBidID returns a fresh random bid identifier.
func NewBidID() string {
	return uuid.NewString()
}

// NewRequestID returns a fresh request correlation id.
func NewRequestID() string {
	return uuid.NewString()
}

// AuctionIDFromContract derives the off-chain auction id for an auction first
// observed on-chain. Redelivered events map to the same id.
func AuctionIDFromContract(contractAuctionID *big.Int) string {
	return uuid.NewSHA1(auctionNamespace, []byte("auction:"+contractAuctionID.String())).String()
}

// ParseAddress validates a 0x-prefixed 20-byte hex address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// FormatAddress renders an address as lowercase 0x-hex, the form persisted in
// the store.
func FormatAddress(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// NormalizeAddress parses and re-renders s in persisted form.
func NormalizeAddress(s string) (string, error) {
	a, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return FormatAddress(a), nil
}

// ParseUint256 parses a base-10 non-negative integer that fits in 256 bits.
func ParseUint256(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return n, nil
}
