// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/events"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/storage"
)

// ApplyAuctionEvent projects one auction-domain event.
func (s *Syncer) ApplyAuctionEvent(ctx context.Context, ev events.AuctionEvent) (outcome Outcome, err error) {
	defer func() { s.observe(ev, outcome, err) }()

	switch e := ev.(type) {
	case *events.AuctionCreated:
		return s.auctionCreated(ctx, e)
	case *events.BidPlaced:
		return s.bidPlaced(ctx, e)
	case *events.AuctionEnded:
		return s.auctionEnded(ctx, e)
	case *events.AuctionCancelled:
		return s.auctionCancelled(ctx, e)
	case *events.AuctionResolved:
		return s.auctionResolved(ctx, e)
	default:
		return OutcomeIgnored, faults.New(faults.KindDecode, "apply auction event", fmt.Sprintf("unhandled event %T", ev))
	}
}

// auctionCreated maps the on-chain auction onto an off-chain record: an
// existing mapping is a duplicate, a pending off-chain auction for the same
// asset and seller is linked, otherwise a record is created under an id
// derived from the on-chain id.
func (s *Syncer) auctionCreated(ctx context.Context, e *events.AuctionCreated) (Outcome, error) {
	const op = "AuctionCreated"
	fields := append(eventFields(e.Meta), zap.String("contractAuctionId", e.AuctionID.String()))

	existing, err := s.store.GetAuctionByContractID(ctx, e.AuctionID)
	switch {
	case err == nil:
		s.log.Debug("auction already mapped", append(fields, zap.String("auctionId", existing.ID))...)
		return OutcomeDuplicate, nil
	case !errors.Is(err, storage.ErrNotFound):
		return OutcomeIgnored, storeErr(op, err)
	}

	seller := ids.FormatAddress(e.Seller)
	assetID := e.AssetID.String()

	pending, err := s.store.FindUnmappedAuction(ctx, assetID, seller)
	switch {
	case err == nil:
		return s.linkAuction(ctx, pending.ID, e, fields)
	case !errors.Is(err, storage.ErrNotFound):
		return OutcomeIgnored, storeErr(op, err)
	}

	auction := &storage.Auction{
		ID:                ids.AuctionIDFromContract(e.AuctionID),
		ContractAuctionID: e.AuctionID,
		AssetID:           assetID,
		SellerAddress:     seller,
		ReservePrice:      bigOrZero(e.ReservePrice),
		DepositRequired:   bigOrZero(e.DepositRequired),
		StartedAt:         s.now().UTC(),
		EndsAt:            unixTime(e.EndTime),
		Status:            storage.AuctionActive,
		AppliedEvents:     []string{e.Key()},
	}
	inserted, err := s.store.InsertAuctionIfAbsent(ctx, auction)
	if err != nil {
		return OutcomeIgnored, storeErr(op, err)
	}
	if !inserted {
		return OutcomeDuplicate, nil
	}
	s.log.Info("auction created from chain", append(fields, zap.String("auctionId", auction.ID))...)
	return OutcomeApplied, nil
}

func (s *Syncer) linkAuction(ctx context.Context, id string, e *events.AuctionCreated, fields []zap.Field) (Outcome, error) {
	changed := false
	_, err := s.store.UpdateAuction(ctx, id, func(a *storage.Auction) error {
		changed = false
		if a.ContractAuctionID != nil {
			if a.ContractAuctionID.Cmp(e.AuctionID) == 0 {
				return storage.ErrNoChange
			}
			return storage.ErrConflict
		}
		a.ContractAuctionID = e.AuctionID
		if a.ReservePrice == nil {
			a.ReservePrice = bigOrZero(e.ReservePrice)
		}
		if a.DepositRequired == nil {
			a.DepositRequired = bigOrZero(e.DepositRequired)
		}
		if a.EndsAt.IsZero() {
			a.EndsAt = unixTime(e.EndTime)
		}
		a.AppliedEvents = append(a.AppliedEvents, e.Key())
		changed = true
		return nil
	})
	if err != nil {
		return OutcomeIgnored, storeErr("AuctionCreated", err)
	}
	if !changed {
		return OutcomeDuplicate, nil
	}
	s.log.Info("auction linked to chain", append(fields, zap.String("auctionId", id))...)
	return OutcomeApplied, nil
}

// bidPlaced confirms that the escrow deposit for a stored sealed bid landed.
func (s *Syncer) bidPlaced(ctx context.Context, e *events.BidPlaced) (Outcome, error) {
	const op = "BidPlaced"
	fields := append(eventFields(e.Meta),
		zap.String("contractAuctionId", e.AuctionID.String()),
		zap.String("commitment", e.CommitmentHash.Hex()),
	)

	auction, err := s.store.GetAuctionByContractID(ctx, e.AuctionID)
	if err != nil {
		return OutcomeIgnored, s.missing(op, err, fields)
	}
	bid, err := s.store.GetBidByCommitment(ctx, auction.ID, e.CommitmentHash.Hex())
	if err != nil {
		return OutcomeIgnored, s.missing(op, err, fields)
	}
	if bid.BidderAddress != ids.FormatAddress(e.Bidder) {
		s.log.Error("on-chain bidder does not match sealed bid",
			append(fields, zap.String("bidId", bid.ID), zap.String("bidder", e.Bidder.Hex()))...)
		return OutcomeIgnored, nil
	}

	changed := false
	_, err = s.store.UpdateBid(ctx, bid.ID, func(b *storage.SealedBid) error {
		changed = false
		if b.OnChainConfirmed {
			return storage.ErrNoChange
		}
		b.OnChainConfirmed = true
		if b.EscrowTxHash == "" {
			b.EscrowTxHash = e.TxHash.Hex()
		}
		changed = true
		return nil
	})
	if err != nil {
		return OutcomeIgnored, storeErr(op, err)
	}
	if !changed {
		return OutcomeDuplicate, nil
	}
	s.log.Info("bid confirmed on chain", append(fields, zap.String("bidId", bid.ID))...)
	return OutcomeApplied, nil
}

func (s *Syncer) auctionEnded(ctx context.Context, e *events.AuctionEnded) (Outcome, error) {
	return s.mutateAuction(ctx, "AuctionEnded", e.Meta, e.AuctionID, func(a *storage.Auction) error {
		if e.BidCount != nil && e.BidCount.IsInt64() {
			a.OnChainBidCount = e.BidCount.Int64()
		}
		if a.Status == storage.AuctionActive {
			a.Status = storage.AuctionEnded
		}
		return nil
	})
}

func (s *Syncer) auctionCancelled(ctx context.Context, e *events.AuctionCancelled) (Outcome, error) {
	return s.mutateAuction(ctx, "AuctionCancelled", e.Meta, e.AuctionID, func(a *storage.Auction) error {
		switch {
		case a.Status.Open():
			a.Status = storage.AuctionCancelled
		case a.Status == storage.AuctionResolved:
			s.log.Error("chain cancelled a resolved auction",
				append(eventFields(e.Meta), zap.String("auctionId", a.ID))...)
		}
		return nil
	})
}

// auctionResolved records on-chain settlement. Winner fields stay owned by
// the solver; a disagreement is logged for operators.
func (s *Syncer) auctionResolved(ctx context.Context, e *events.AuctionResolved) (Outcome, error) {
	return s.mutateAuction(ctx, "AuctionResolved", e.Meta, e.AuctionID, func(a *storage.Auction) error {
		fields := append(eventFields(e.Meta), zap.String("auctionId", a.ID))
		switch {
		case a.Status != storage.AuctionResolved:
			s.log.Warn("auction settled on chain before off-chain resolution",
				append(fields, zap.String("status", string(a.Status)))...)
		case a.WinnerAddress != ids.FormatAddress(e.Winner) || a.WinningAmount == nil || a.WinningAmount.Cmp(bigOrZero(e.WinningAmount)) != 0:
			s.log.Error("on-chain settlement disagrees with resolution",
				append(fields,
					zap.String("storedWinner", a.WinnerAddress),
					zap.String("chainWinner", ids.FormatAddress(e.Winner)),
					zap.Stringer("chainAmount", bigOrZero(e.WinningAmount)),
				)...)
		}
		a.SettledOnChain = true
		a.SettlementTx = e.TxHash.Hex()
		return nil
	})
}

// mutateAuction applies a lifecycle change to the auction mapped to an
// on-chain id, once per delivery key.
func (s *Syncer) mutateAuction(ctx context.Context, op string, meta events.Meta, contractID *big.Int, mutate func(*storage.Auction) error) (Outcome, error) {
	fields := append(eventFields(meta), zap.String("contractAuctionId", contractID.String()))
	auction, err := s.store.GetAuctionByContractID(ctx, contractID)
	if err != nil {
		return OutcomeIgnored, s.missing(op, err, fields)
	}

	key := meta.Key()
	changed := false
	_, err = s.store.UpdateAuction(ctx, auction.ID, func(a *storage.Auction) error {
		changed = false
		if storage.Applied(a.AppliedEvents, key) {
			return storage.ErrNoChange
		}
		if err := mutate(a); err != nil {
			return err
		}
		a.AppliedEvents = append(a.AppliedEvents, key)
		changed = true
		return nil
	})
	if err != nil {
		return OutcomeIgnored, storeErr(op, err)
	}
	if !changed {
		return OutcomeDuplicate, nil
	}
	s.log.Info(op+" applied", append(fields, zap.String("auctionId", auction.ID))...)
	return OutcomeApplied, nil
}

// missing tags and logs a lookup failure; absence is an ordering anomaly
// left for redelivery.
func (s *Syncer) missing(op string, err error, fields []zap.Field) error {
	err = storeErr(op, err)
	if faults.Is(err, faults.KindNotFound) {
		s.log.Warn(op+" arrived before its prerequisite", fields...)
	}
	return err
}
