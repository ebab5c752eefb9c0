// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/maskbid/maskbid/pkg/crypto"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/log"
)

// ErrAuctionClosed is returned when a bid targets an auction that no longer
// accepts bids.
var ErrAuctionClosed = errors.New("auction is not accepting bids")

// SubmitBidRequest is a sealed-bid submission.
type SubmitBidRequest struct {
	AuctionID        string `json:"auctionId"`
	BidderAddress    string `json:"bidderAddress"`
	EncryptedPayload string `json:"encryptedPayload"`
	EscrowTxHash     string `json:"escrowTxHash"`
}

// SubmitBid validates a sealed bid, binds it with its commitment hash and
// stores it as active.
func (s *Storage) SubmitBid(ctx context.Context, req SubmitBidRequest) (*SealedBid, error) {
	const op = "submit bid"

	if req.AuctionID == "" {
		return nil, faults.New(faults.KindBadRequest, op, "auctionId is required")
	}
	bidder, err := ids.ParseAddress(req.BidderAddress)
	if err != nil {
		return nil, faults.Wrap(faults.KindBadRequest, op, err)
	}
	payload, err := base64.StdEncoding.DecodeString(req.EncryptedPayload)
	if err != nil || len(payload) == 0 {
		return nil, faults.New(faults.KindBadRequest, op, "encryptedPayload must be non-empty base64")
	}

	auction, err := s.GetAuction(ctx, req.AuctionID)
	if errors.Is(err, ErrNotFound) {
		return nil, faults.Wrap(faults.KindNotFound, op, fmt.Errorf("auction %s: %w", req.AuctionID, err))
	}
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	// A recorded decision means resolution has started; later bids would be
	// marked lost without being ranked.
	if auction.Status != AuctionActive || auction.Decision != nil ||
		(!auction.EndsAt.IsZero() && now.After(auction.EndsAt)) {
		return nil, faults.Wrap(faults.KindConflict, op, ErrAuctionClosed)
	}

	bid := &SealedBid{
		ID:               ids.NewBidID(),
		AuctionID:        auction.ID,
		BidderAddress:    ids.FormatAddress(bidder),
		EncryptedPayload: req.EncryptedPayload,
		CommitmentHash:   crypto.CreateCommitment(auction.ID, bidder, payload),
		EscrowTxHash:     req.EscrowTxHash,
		Status:           BidActive,
		Seq:              s.nextSeq(now),
		SubmittedAt:      now,
	}
	if _, err := s.InsertBidIfAbsent(ctx, bid); err != nil {
		return nil, err
	}
	s.log.Info("sealed bid stored",
		log.String("auctionId", bid.AuctionID),
		log.String("bidId", bid.ID),
		log.String("commitment", bid.CommitmentHash),
	)
	return bid, nil
}
