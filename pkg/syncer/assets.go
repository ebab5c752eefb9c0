// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package syncer

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/events"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/storage"
)

const secondsPerHour = 3600

// ApplyAssetEvent projects one asset-domain event.
func (s *Syncer) ApplyAssetEvent(ctx context.Context, ev events.AssetEvent) (outcome Outcome, err error) {
	defer func() { s.observe(ev, outcome, err) }()

	switch e := ev.(type) {
	case *events.AssetRegistered:
		return s.assetRegistered(ctx, e)
	case *events.AssetVerified:
		return s.assetVerified(ctx, e)
	case *events.TokensMinted:
		return s.supplyChanged(ctx, e.Meta, e.AssetID, e.Amount, true)
	case *events.TokensRedeemed:
		return s.supplyChanged(ctx, e.Meta, e.AssetID, e.Amount, false)
	default:
		return OutcomeIgnored, faults.New(faults.KindDecode, "apply asset event", fmt.Sprintf("unhandled event %T", ev))
	}
}

func (s *Syncer) assetRegistered(ctx context.Context, e *events.AssetRegistered) (Outcome, error) {
	const op = "AssetRegistered"

	hours := new(big.Int).Add(bigOrZero(e.AuctionDuration), big.NewInt(secondsPerHour-1))
	hours.Div(hours, big.NewInt(secondsPerHour))

	asset := &storage.Asset{
		AssetID:              e.AssetID.String(),
		Issuer:               ids.FormatAddress(e.Issuer),
		Name:                 e.Name,
		Symbol:               e.Symbol,
		AssetType:            e.AssetType,
		Description:          e.Description,
		SerialNumber:         e.SerialNumber,
		ReservePrice:         bigOrZero(e.ReservePrice),
		RequiredDeposit:      bigOrZero(e.RequiredDeposit),
		AuctionDurationHours: hours.Int64(),
		MintedSupply:         new(big.Int),
		RedeemedSupply:       new(big.Int),
		RegisteredTx:         e.TxHash.Hex(),
		CreatedAt:            s.now().UTC(),
		AppliedEvents:        []string{e.Key()},
	}
	inserted, err := s.store.InsertAssetIfAbsent(ctx, asset)
	if err != nil {
		return OutcomeIgnored, storeErr(op, err)
	}
	if !inserted {
		s.log.Debug("asset already registered", append(eventFields(e.Meta), zap.String("assetId", asset.AssetID))...)
		return OutcomeDuplicate, nil
	}
	s.log.Info("asset registered", append(eventFields(e.Meta), zap.String("assetId", asset.AssetID))...)
	return OutcomeApplied, nil
}

func (s *Syncer) assetVerified(ctx context.Context, e *events.AssetVerified) (Outcome, error) {
	key := e.Key()
	changed := false

	_, err := s.store.UpdateAssetFields(ctx, e.AssetID.String(), func(a *storage.Asset) error {
		changed = false
		if storage.Applied(a.AppliedEvents, key) || a.Verified {
			return storage.ErrNoChange
		}
		a.Verified = e.IsValid
		a.VerificationDetails = e.VerificationDetails
		a.AppliedEvents = append(a.AppliedEvents, key)
		changed = true
		return nil
	})
	return s.assetOutcome("AssetVerified", e.Meta, e.AssetID, changed, err)
}

// supplyChanged adds amount to the minted or redeemed counter once per log.
func (s *Syncer) supplyChanged(ctx context.Context, meta events.Meta, assetID, amount *big.Int, minted bool) (Outcome, error) {
	op := "TokensRedeemed"
	if minted {
		op = "TokensMinted"
	}
	key := meta.Key()
	changed := false

	_, err := s.store.UpdateAssetFields(ctx, assetID.String(), func(a *storage.Asset) error {
		changed = false
		if storage.Applied(a.AppliedEvents, key) {
			return storage.ErrNoChange
		}
		counter := &a.RedeemedSupply
		if minted {
			counter = &a.MintedSupply
		}
		*counter = new(big.Int).Add(bigOrZero(*counter), bigOrZero(amount))
		a.AppliedEvents = append(a.AppliedEvents, key)
		changed = true
		return nil
	})
	return s.assetOutcome(op, meta, assetID, changed, err)
}

// assetOutcome logs the result; a missing asset is surfaced for redelivery.
func (s *Syncer) assetOutcome(op string, meta events.Meta, assetID *big.Int, changed bool, err error) (Outcome, error) {
	fields := append(eventFields(meta), zap.String("assetId", assetID.String()))
	switch {
	case err != nil:
		err = storeErr(op, err)
		if faults.Is(err, faults.KindNotFound) {
			s.log.Warn("asset event before registration", fields...)
		}
		return OutcomeIgnored, err
	case !changed:
		s.log.Debug(op+" already applied", fields...)
		return OutcomeDuplicate, nil
	default:
		s.log.Info(op+" applied", fields...)
		return OutcomeApplied, nil
	}
}
