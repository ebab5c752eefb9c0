// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// CatalogVersion tracks the deployed contract revision the catalog mirrors.
// Field order and types must change only together with the contracts.
const CatalogVersion = "2025.1"

const assetCatalogJSON = `[
  {"type":"event","name":"AssetRegistered","anonymous":false,"inputs":[
    {"name":"assetId","type":"uint256","indexed":true},
    {"name":"issuer","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"symbol","type":"string","indexed":false},
    {"name":"assetType","type":"string","indexed":false},
    {"name":"description","type":"string","indexed":false},
    {"name":"serialNumber","type":"string","indexed":false},
    {"name":"reservePrice","type":"uint256","indexed":false},
    {"name":"requiredDeposit","type":"uint256","indexed":false},
    {"name":"auctionDuration","type":"uint256","indexed":false}]},
  {"type":"event","name":"AssetVerified","anonymous":false,"inputs":[
    {"name":"assetId","type":"uint256","indexed":true},
    {"name":"isValid","type":"bool","indexed":false},
    {"name":"verificationDetails","type":"string","indexed":false}]},
  {"type":"event","name":"TokensMinted","anonymous":false,"inputs":[
    {"name":"assetId","type":"uint256","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"to","type":"address","indexed":true},
    {"name":"reason","type":"string","indexed":false}]},
  {"type":"event","name":"TokensRedeemed","anonymous":false,"inputs":[
    {"name":"assetId","type":"uint256","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"account","type":"address","indexed":true},
    {"name":"settlementDetails","type":"string","indexed":false}]}
]`

const auctionCatalogJSON = `[
  {"type":"event","name":"AuctionCreated","anonymous":false,"inputs":[
    {"name":"auctionId","type":"uint256","indexed":true},
    {"name":"assetId","type":"uint256","indexed":true},
    {"name":"seller","type":"address","indexed":true},
    {"name":"reservePrice","type":"uint256","indexed":false},
    {"name":"depositRequired","type":"uint256","indexed":false},
    {"name":"endTime","type":"uint256","indexed":false}]},
  {"type":"event","name":"BidPlaced","anonymous":false,"inputs":[
    {"name":"auctionId","type":"uint256","indexed":true},
    {"name":"bidder","type":"address","indexed":true},
    {"name":"commitmentHash","type":"bytes32","indexed":false},
    {"name":"deposit","type":"uint256","indexed":false}]},
  {"type":"event","name":"AuctionEnded","anonymous":false,"inputs":[
    {"name":"auctionId","type":"uint256","indexed":true},
    {"name":"bidCount","type":"uint256","indexed":false}]},
  {"type":"event","name":"AuctionResolved","anonymous":false,"inputs":[
    {"name":"auctionId","type":"uint256","indexed":true},
    {"name":"winner","type":"address","indexed":true},
    {"name":"winningAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"AuctionCancelled","anonymous":false,"inputs":[
    {"name":"auctionId","type":"uint256","indexed":true}]}
]`

var (
	assetABI   = mustParse(assetCatalogJSON)
	auctionABI = mustParse(auctionCatalogJSON)
)

// AssetABI returns the asset-domain event catalog.
func AssetABI() abi.ABI { return assetABI }

// AuctionABI returns the auction-domain event catalog.
func AuctionABI() abi.ABI { return auctionABI }

// Topic returns topic0 for a catalogued event name, or the zero hash.
func Topic(name string) common.Hash {
	if ev, ok := assetABI.Events[name]; ok {
		return ev.ID
	}
	if ev, ok := auctionABI.Events[name]; ok {
		return ev.ID
	}
	return common.Hash{}
}

// Topics returns topic0 of every event in a catalog, for log filters.
func Topics(catalog abi.ABI) []common.Hash {
	out := make([]common.Hash, 0, len(catalog.Events))
	for _, ev := range catalog.Events {
		out = append(out, ev.ID)
	}
	return out
}

func mustParse(js string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic(err)
	}
	return parsed
}
