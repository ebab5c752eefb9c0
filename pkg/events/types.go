// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Meta locates the log an event was decoded from.
type Meta struct {
	Contract    common.Address
	TxHash      common.Hash
	LogIndex    uint
	BlockNumber uint64
}

// EventMeta returns the embedded log location.
func (m Meta) EventMeta() Meta { return m }

// Key identifies a delivery of this log; redeliveries share it.
func (m Meta) Key() string {
	return fmt.Sprintf("%s:%d", m.TxHash.Hex(), m.LogIndex)
}

// AssetEvent is the closed set of asset-domain events.
type AssetEvent interface {
	EventName() string
	EventMeta() Meta
	assetEvent()
}

// AuctionEvent is the closed set of auction-domain events.
type AuctionEvent interface {
	EventName() string
	EventMeta() Meta
	auctionEvent()
}

type AssetRegistered struct {
	Meta
	AssetID         *big.Int
	Issuer          common.Address
	Name            string
	Symbol          string
	AssetType       string
	Description     string
	SerialNumber    string
	ReservePrice    *big.Int
	RequiredDeposit *big.Int
	AuctionDuration *big.Int // seconds
}

type AssetVerified struct {
	Meta
	AssetID             *big.Int
	IsValid             bool
	VerificationDetails string
}

type TokensMinted struct {
	Meta
	AssetID *big.Int
	Amount  *big.Int
	To      common.Address
	Reason  string
}

type TokensRedeemed struct {
	Meta
	AssetID           *big.Int
	Amount            *big.Int
	Account           common.Address
	SettlementDetails string
}

type AuctionCreated struct {
	Meta
	AuctionID       *big.Int
	AssetID         *big.Int
	Seller          common.Address
	ReservePrice    *big.Int
	DepositRequired *big.Int
	EndTime         *big.Int // unix seconds
}

type BidPlaced struct {
	Meta
	AuctionID      *big.Int
	Bidder         common.Address
	CommitmentHash common.Hash
	Deposit        *big.Int
}

type AuctionEnded struct {
	Meta
	AuctionID *big.Int
	BidCount  *big.Int
}

type AuctionResolved struct {
	Meta
	AuctionID     *big.Int
	Winner        common.Address
	WinningAmount *big.Int
}

type AuctionCancelled struct {
	Meta
	AuctionID *big.Int
}

func (AssetRegistered) EventName() string  { return "AssetRegistered" }
func (AssetVerified) EventName() string    { return "AssetVerified" }
func (TokensMinted) EventName() string     { return "TokensMinted" }
func (TokensRedeemed) EventName() string   { return "TokensRedeemed" }
func (AuctionCreated) EventName() string   { return "AuctionCreated" }
func (BidPlaced) EventName() string        { return "BidPlaced" }
func (AuctionEnded) EventName() string     { return "AuctionEnded" }
func (AuctionResolved) EventName() string  { return "AuctionResolved" }
func (AuctionCancelled) EventName() string { return "AuctionCancelled" }

func (*AssetRegistered) assetEvent() {}
func (*AssetVerified) assetEvent()   {}
func (*TokensMinted) assetEvent()    {}
func (*TokensRedeemed) assetEvent()  {}

func (*AuctionCreated) auctionEvent()   {}
func (*BidPlaced) auctionEvent()        {}
func (*AuctionEnded) auctionEvent()     {}
func (*AuctionResolved) auctionEvent()  {}
func (*AuctionCancelled) auctionEvent() {}
