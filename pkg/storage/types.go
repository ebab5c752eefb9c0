// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"math/big"
	"slices"
	"time"
)

// AuctionStatus moves active → ended → resolved, or to cancelled.
type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "active"
	AuctionEnded     AuctionStatus = "ended"
	AuctionResolved  AuctionStatus = "resolved"
	AuctionCancelled AuctionStatus = "cancelled"
)

// Open reports whether an auction may still be resolved.
func (s AuctionStatus) Open() bool {
	return s == AuctionActive || s == AuctionEnded
}

// BidStatus leaves active exactly once.
type BidStatus string

const (
	BidActive BidStatus = "active"
	BidWon    BidStatus = "won"
	BidLost   BidStatus = "lost"
)

// Asset is a registered real-world asset. Amounts are minor units.
type Asset struct {
	AssetID              string    `json:"assetId"`
	Issuer               string    `json:"issuer"`
	Name                 string    `json:"name"`
	Symbol               string    `json:"symbol"`
	AssetType            string    `json:"assetType"`
	Description          string    `json:"description"`
	SerialNumber         string    `json:"serialNumber"`
	ReservePrice         *big.Int  `json:"reservePrice"`
	RequiredDeposit      *big.Int  `json:"requiredDeposit"`
	AuctionDurationHours int64     `json:"auctionDurationHours"`
	Verified             bool      `json:"verified"`
	VerificationDetails  string    `json:"verificationDetails,omitempty"`
	MintedSupply         *big.Int  `json:"mintedSupply"`
	RedeemedSupply       *big.Int  `json:"redeemedSupply"`
	RegisteredTx         string    `json:"registeredTx,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	AppliedEvents        []string  `json:"appliedEvents,omitempty"`

	Version int64 `json:"-"`
}

// Decision is the resolution checkpoint written before any bid status
// changes, so an interrupted resolution resumes with the same winner.
type Decision struct {
	BidID               string    `json:"bidId"`
	Winner              string    `json:"winner"`
	Amount              *big.Int  `json:"amount"`
	ContractAuctionID   *big.Int  `json:"contractAuctionId"`
	TotalBids           int       `json:"totalBids"`
	ValidBids           int       `json:"validBids"`
	NeedsReconciliation bool      `json:"needsReconciliation,omitempty"`
	DecidedAt           time.Time `json:"decidedAt"`
}

// Auction is a sealed-bid sale of one asset.
type Auction struct {
	ID                string        `json:"id"`
	ContractAuctionID *big.Int      `json:"contractAuctionId,omitempty"`
	AssetID           string        `json:"assetId"`
	SellerAddress     string        `json:"sellerAddress"`
	ReservePrice      *big.Int      `json:"reservePrice"`
	DepositRequired   *big.Int      `json:"depositRequired"`
	StartedAt         time.Time     `json:"startedAt"`
	EndsAt            time.Time     `json:"endsAt"`
	Status            AuctionStatus `json:"status"`
	WinnerAddress     string        `json:"winnerAddress,omitempty"`
	WinningAmount     *big.Int      `json:"winningAmount,omitempty"`
	Decision          *Decision     `json:"decision,omitempty"`
	ResolvedAt        time.Time     `json:"resolvedAt,omitzero"`
	OnChainBidCount   int64         `json:"onChainBidCount,omitempty"`
	SettledOnChain    bool          `json:"settledOnChain,omitempty"`
	SettlementTx      string        `json:"settlementTx,omitempty"`
	AppliedEvents     []string      `json:"appliedEvents,omitempty"`

	Version int64 `json:"-"`
}

// SealedBid is one bidder's encrypted submission. EncryptedPayload is base64.
type SealedBid struct {
	ID               string    `json:"id"`
	AuctionID        string    `json:"auctionId"`
	BidderAddress    string    `json:"bidderAddress"`
	EncryptedPayload string    `json:"encryptedPayload"`
	CommitmentHash   string    `json:"commitmentHash"`
	EscrowTxHash     string    `json:"escrowTxHash,omitempty"`
	Status           BidStatus `json:"status"`
	Seq              int64     `json:"seq"`
	SubmittedAt      time.Time `json:"submittedAt"`
	OnChainConfirmed bool      `json:"onChainConfirmed,omitempty"`

	Version int64 `json:"-"`
}

// Applied reports whether an event delivery key was already applied.
func Applied(keys []string, key string) bool {
	return slices.Contains(keys, key)
}
