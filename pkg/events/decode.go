// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrUnknownEvent is returned for logs whose topic0 is not in the catalog.
// Callers skip these; they are not failures.
var ErrUnknownEvent = errors.New("unknown event")

// DecodeError reports a catalogued log whose payload does not match the
// declared field types or arity.
type DecodeError struct {
	Event string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s.%s: %v", e.Event, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errFieldType = errors.New("unexpected field type")

type decoder struct {
	catalog abi.ABI
	byID    map[common.Hash]abi.Event
}

func newDecoder(catalog abi.ABI) decoder {
	byID := make(map[common.Hash]abi.Event, len(catalog.Events))
	for _, ev := range catalog.Events {
		byID[ev.ID] = ev
	}
	return decoder{catalog: catalog, byID: byID}
}

// fields unpacks indexed topics and data into a name-keyed map.
func (d decoder) fields(l types.Log) (string, *fieldReader, error) {
	if len(l.Topics) == 0 {
		return "", nil, ErrUnknownEvent
	}
	ev, ok := d.byID[l.Topics[0]]
	if !ok {
		return "", nil, ErrUnknownEvent
	}

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if got := len(l.Topics) - 1; got != len(indexed) {
		return ev.Name, nil, &DecodeError{
			Event: ev.Name,
			Err:   fmt.Errorf("expected %d indexed topics, got %d", len(indexed), got),
		}
	}

	values := make(map[string]any, len(ev.Inputs))
	if err := ev.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); err != nil {
		return ev.Name, nil, &DecodeError{Event: ev.Name, Err: err}
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, l.Topics[1:]); err != nil {
		return ev.Name, nil, &DecodeError{Event: ev.Name, Err: err}
	}
	return ev.Name, &fieldReader{event: ev.Name, values: values}, nil
}

func metaOf(l types.Log) Meta {
	return Meta{
		Contract:    l.Address,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
		BlockNumber: l.BlockNumber,
	}
}

// fieldReader extracts typed values, keeping the first mismatch.
type fieldReader struct {
	event  string
	values map[string]any
	err    error
}

func (r *fieldReader) fail(field string) {
	if r.err == nil {
		r.err = &DecodeError{Event: r.event, Field: field, Err: errFieldType}
	}
}

func (r *fieldReader) uint256(name string) *big.Int {
	v, ok := r.values[name].(*big.Int)
	if !ok {
		r.fail(name)
		return nil
	}
	return v
}

func (r *fieldReader) address(name string) common.Address {
	v, ok := r.values[name].(common.Address)
	if !ok {
		r.fail(name)
	}
	return v
}

func (r *fieldReader) str(name string) string {
	v, ok := r.values[name].(string)
	if !ok {
		r.fail(name)
	}
	return v
}

func (r *fieldReader) boolean(name string) bool {
	v, ok := r.values[name].(bool)
	if !ok {
		r.fail(name)
	}
	return v
}

func (r *fieldReader) bytes32(name string) common.Hash {
	v, ok := r.values[name].([32]byte)
	if !ok {
		r.fail(name)
	}
	return common.Hash(v)
}

// AssetDecoder decodes asset-registry logs.
type AssetDecoder struct{ decoder }

// NewAssetDecoder returns a decoder over the asset catalog.
func NewAssetDecoder() *AssetDecoder {
	return &AssetDecoder{newDecoder(assetABI)}
}

// Decode maps a log to its typed event.
func (d *AssetDecoder) Decode(l types.Log) (AssetEvent, error) {
	name, r, err := d.fields(l)
	if err != nil {
		return nil, err
	}
	meta := metaOf(l)

	var ev AssetEvent
	switch name {
	case "AssetRegistered":
		ev = &AssetRegistered{
			Meta:            meta,
			AssetID:         r.uint256("assetId"),
			Issuer:          r.address("issuer"),
			Name:            r.str("name"),
			Symbol:          r.str("symbol"),
			AssetType:       r.str("assetType"),
			Description:     r.str("description"),
			SerialNumber:    r.str("serialNumber"),
			ReservePrice:    r.uint256("reservePrice"),
			RequiredDeposit: r.uint256("requiredDeposit"),
			AuctionDuration: r.uint256("auctionDuration"),
		}
	case "AssetVerified":
		ev = &AssetVerified{
			Meta:                meta,
			AssetID:             r.uint256("assetId"),
			IsValid:             r.boolean("isValid"),
			VerificationDetails: r.str("verificationDetails"),
		}
	case "TokensMinted":
		ev = &TokensMinted{
			Meta:    meta,
			AssetID: r.uint256("assetId"),
			Amount:  r.uint256("amount"),
			To:      r.address("to"),
			Reason:  r.str("reason"),
		}
	case "TokensRedeemed":
		ev = &TokensRedeemed{
			Meta:              meta,
			AssetID:           r.uint256("assetId"),
			Amount:            r.uint256("amount"),
			Account:           r.address("account"),
			SettlementDetails: r.str("settlementDetails"),
		}
	default:
		return nil, ErrUnknownEvent
	}
	if r.err != nil {
		return nil, r.err
	}
	return ev, nil
}

// AuctionDecoder decodes auction-house logs.
type AuctionDecoder struct{ decoder }

// NewAuctionDecoder returns a decoder over the auction catalog.
func NewAuctionDecoder() *AuctionDecoder {
	return &AuctionDecoder{newDecoder(auctionABI)}
}

// Decode maps a log to its typed event.
func (d *AuctionDecoder) Decode(l types.Log) (AuctionEvent, error) {
	name, r, err := d.fields(l)
	if err != nil {
		return nil, err
	}
	meta := metaOf(l)

	var ev AuctionEvent
	switch name {
	case "AuctionCreated":
		ev = &AuctionCreated{
			Meta:            meta,
			AuctionID:       r.uint256("auctionId"),
			AssetID:         r.uint256("assetId"),
			Seller:          r.address("seller"),
			ReservePrice:    r.uint256("reservePrice"),
			DepositRequired: r.uint256("depositRequired"),
			EndTime:         r.uint256("endTime"),
		}
	case "BidPlaced":
		ev = &BidPlaced{
			Meta:           meta,
			AuctionID:      r.uint256("auctionId"),
			Bidder:         r.address("bidder"),
			CommitmentHash: r.bytes32("commitmentHash"),
			Deposit:        r.uint256("deposit"),
		}
	case "AuctionEnded":
		ev = &AuctionEnded{
			Meta:      meta,
			AuctionID: r.uint256("auctionId"),
			BidCount:  r.uint256("bidCount"),
		}
	case "AuctionResolved":
		ev = &AuctionResolved{
			Meta:          meta,
			AuctionID:     r.uint256("auctionId"),
			Winner:        r.address("winner"),
			WinningAmount: r.uint256("winningAmount"),
		}
	case "AuctionCancelled":
		ev = &AuctionCancelled{
			Meta:      meta,
			AuctionID: r.uint256("auctionId"),
		}
	default:
		return nil, ErrUnknownEvent
	}
	if r.err != nil {
		return nil, r.err
	}
	return ev, nil
}
