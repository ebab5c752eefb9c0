// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package solver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/auction"
	"github.com/maskbid/maskbid/pkg/crypto"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/settlement"
	"github.com/maskbid/maskbid/pkg/storage"
)

// Drop reasons, used as metric labels.
const (
	DropEncoding       = "encoding"
	DropDecrypt        = "decrypt"
	DropPayload        = "payload"
	DropBidderMismatch = "bidder_mismatch"
	DropCommitment     = "commitment_mismatch"
	DropAmount         = "amount"
	DropBelowReserve   = "below_reserve"
)

// Payload is the plaintext inside a sealed bid. BidAmount is a decimal
// currency value, sent as a JSON string or number.
type Payload struct {
	BidderAddress string      `json:"bidderAddress"`
	BidAmount     json.Number `json:"bidAmount"`
}

type dropError struct {
	reason string
	err    error
}

func (e *dropError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *dropError) Unwrap() error { return e.err }

func drop(reason string, err error) error {
	return &dropError{reason: reason, err: err}
}

// decide opens every bid and selects the winner. Individual bids that fail
// to open or validate are dropped; only cancellation aborts.
func (s *Solver) decide(ctx context.Context, a *storage.Auction, bids []*storage.SealedBid, r *run) (*storage.Decision, error) {
	const op = "decide"

	candidates := make([]*auction.Candidate, 0, len(bids))
	for _, bid := range bids {
		c, err := s.open(ctx, a.ID, bid)
		if err == nil {
			candidates = append(candidates, c)
			continue
		}
		var de *dropError
		if !errors.As(err, &de) {
			return nil, faults.Wrap(faults.KindTransport, op, err)
		}
		r.log.Warn("sealed bid dropped",
			zap.String("bidId", bid.ID),
			zap.String("reason", de.reason),
			zap.Error(de.err),
		)
		s.countDrop(de.reason)
	}
	r.advance(StateDecrypted)

	outcome, err := auction.SelectWinner(candidates, a.ReservePrice)
	for range outcome.BelowReserve {
		s.countDrop(DropBelowReserve)
	}
	if errors.Is(err, auction.ErrNoValidBids) {
		return nil, faults.Wrap(faults.KindNoValidBids, op, err)
	}
	if err != nil {
		return nil, faults.Wrap(faults.KindTransport, op, err)
	}
	r.result.ValidBids = len(outcome.Ranked)
	r.advance(StateWinnerSelected)
	r.log.Info("winner selected",
		zap.String("bidId", outcome.Winner.BidID),
		zap.Int("ranked", len(outcome.Ranked)),
		zap.Int("belowReserve", len(outcome.BelowReserve)),
		zap.String("digest", outcome.Digest().Hex()),
	)

	w := outcome.Winner
	return &storage.Decision{
		BidID:     w.BidID,
		Winner:    ids.FormatAddress(w.Bidder),
		Amount:    w.Amount,
		TotalBids: len(bids),
		ValidBids: len(outcome.Ranked),
		DecidedAt: s.now().UTC(),
	}, nil
}

// open decrypts and validates one sealed bid.
func (s *Solver) open(ctx context.Context, auctionID string, bid *storage.SealedBid) (*auction.Candidate, error) {
	sealed, err := base64.StdEncoding.DecodeString(bid.EncryptedPayload)
	if err != nil {
		return nil, drop(DropEncoding, err)
	}
	if len(sealed) == 0 {
		return nil, drop(DropEncoding, errors.New("empty payload"))
	}
	stored, err := ids.ParseAddress(bid.BidderAddress)
	if err != nil {
		return nil, drop(DropBidderMismatch, err)
	}

	want := crypto.CreateCommitment(auctionID, stored, sealed)
	if !strings.EqualFold(want, bid.CommitmentHash) {
		return nil, drop(DropCommitment, errors.New("commitment does not bind payload"))
	}

	plain, err := s.decrypt(ctx, sealed)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, drop(DropDecrypt, err)
	}

	var p Payload
	dec := json.NewDecoder(bytes.NewReader(plain))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, drop(DropPayload, err)
	}
	bidder, err := ids.ParseAddress(p.BidderAddress)
	if err != nil {
		return nil, drop(DropPayload, err)
	}
	if bidder != stored {
		return nil, drop(DropBidderMismatch, fmt.Errorf("payload bidder %s", bidder.Hex()))
	}

	amount, err := settlement.ParseAmount(p.BidAmount.String())
	if err != nil {
		return nil, drop(DropAmount, err)
	}
	if amount.Sign() <= 0 {
		return nil, drop(DropAmount, auction.ErrInvalidAmount)
	}
	if !settlement.InReportRange(amount) {
		return nil, drop(DropAmount, settlement.ErrAmountRange)
	}

	return &auction.Candidate{
		BidID:       bid.ID,
		Bidder:      bidder,
		Amount:      amount,
		SubmittedAt: bid.SubmittedAt,
		Seq:         bid.Seq,
	}, nil
}

// decrypt makes at most DecryptAttempts tries.
func (s *Solver) decrypt(ctx context.Context, sealed []byte) ([]byte, error) {
	var err error
	for attempt := 0; attempt < s.cfg.DecryptAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var plain []byte
		plain, err = s.decrypter.Decrypt(ctx, sealed)
		if err == nil {
			return plain, nil
		}
		if errors.Is(err, crypto.ErrInvalidCiphertext) {
			break
		}
	}
	return nil, err
}

func (s *Solver) countDrop(reason string) {
	if s.metrics != nil {
		s.metrics.BidsDropped.WithLabelValues(reason).Inc()
	}
}
