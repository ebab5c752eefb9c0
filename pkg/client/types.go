// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/settlement"
)

var ErrReportMismatch = errors.New("report does not match response")

// ResolveRequest is the body of POST /api/v1/resolve.
type ResolveRequest struct {
	AuctionID         string      `json:"auctionId"`
	ContractAuctionID json.Number `json:"contractAuctionId,omitempty"`
	Action            string      `json:"action"`
}

// ResolveResponse is a successful resolution. Amount is in currency units,
// AmountMinor in integer minor units.
type ResolveResponse struct {
	AuctionID           string      `json:"auctionId"`
	Winner              string      `json:"winner"`
	Amount              json.Number `json:"amount"`
	AmountMinor         string      `json:"amountMinor"`
	AssetID             string      `json:"assetId"`
	ContractAuctionID   json.Number `json:"contractAuctionId"`
	TotalBids           int         `json:"totalBids"`
	ValidBids           int         `json:"validBids"`
	Timestamp           time.Time   `json:"timestamp"`
	Report              string      `json:"report"`
	Replayed            bool        `json:"replayed,omitempty"`
	NeedsReconciliation bool        `json:"needsReconciliation"`
}

// Verify decodes the report and checks it against the plaintext summary.
func (r *ResolveResponse) Verify() (settlement.Report, error) {
	rep, err := settlement.DecodeReportHex(r.Report)
	if err != nil {
		return settlement.Report{}, err
	}

	winner, err := ids.ParseAddress(r.Winner)
	if err != nil {
		return settlement.Report{}, err
	}
	if rep.Winner != winner {
		return rep, fmt.Errorf("%w: winner %s, report %s", ErrReportMismatch, ids.FormatAddress(winner), ids.FormatAddress(rep.Winner))
	}

	minor, ok := new(big.Int).SetString(r.AmountMinor, 10)
	if !ok || minor.Cmp(rep.WinningAmount) != 0 {
		return rep, fmt.Errorf("%w: amountMinor %q", ErrReportMismatch, r.AmountMinor)
	}
	units, err := decimal.NewFromString(r.Amount.String())
	if err != nil || !units.Shift(settlement.MinorUnitDecimals).Equal(decimal.NewFromBigInt(minor, 0)) {
		return rep, fmt.Errorf("%w: amount %q", ErrReportMismatch, r.Amount)
	}

	contractID, ok := new(big.Int).SetString(r.ContractAuctionID.String(), 10)
	if !ok || contractID.Cmp(rep.AuctionID) != 0 {
		return rep, fmt.Errorf("%w: contractAuctionId %q", ErrReportMismatch, r.ContractAuctionID)
	}
	return rep, nil
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	AuctionID string `json:"auctionId,omitempty"`
	TotalBids int    `json:"totalBids,omitempty"`
}

// BidRequest is the body of POST /api/v1/bids. EncryptedPayload is base64.
type BidRequest struct {
	AuctionID        string `json:"auctionId"`
	BidderAddress    string `json:"bidderAddress"`
	EncryptedPayload string `json:"encryptedPayload"`
	EscrowTxHash     string `json:"escrowTxHash,omitempty"`
}

// BidReceipt acknowledges a stored sealed bid.
type BidReceipt struct {
	BidID          string    `json:"bidId"`
	AuctionID      string    `json:"auctionId"`
	CommitmentHash string    `json:"commitmentHash"`
	Status         string    `json:"status"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// AuctionView is the public projection of an auction. It never carries
// bid contents.
type AuctionView struct {
	ID                string     `json:"id"`
	ContractAuctionID string     `json:"contractAuctionId,omitempty"`
	AssetID           string     `json:"assetId"`
	Seller            string     `json:"seller"`
	ReservePrice      string     `json:"reservePrice"`
	DepositRequired   string     `json:"depositRequired"`
	StartedAt         time.Time  `json:"startedAt"`
	EndsAt            time.Time  `json:"endsAt"`
	Status            string     `json:"status"`
	TotalBids         int        `json:"totalBids"`
	Winner            string     `json:"winner,omitempty"`
	WinningAmount     string     `json:"winningAmount,omitempty"`
	ResolvedAt        *time.Time `json:"resolvedAt,omitempty"`
	SettledOnChain    bool       `json:"settledOnChain"`
}
