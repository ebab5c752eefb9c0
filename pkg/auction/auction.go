// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auction holds the first-price sealed-bid winner rules.
package auction

import (
	"cmp"
	"encoding/binary"
	"errors"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/maskbid/maskbid/pkg/crypto/hashing"
)

var (
	ErrNoValidBids   = errors.New("no valid bids")
	ErrInvalidAmount = errors.New("bid amount must be positive")
)

// Candidate is a decrypted, validated bid. Amount is in minor units.
type Candidate struct {
	BidID       string
	Bidder      common.Address
	Amount      *big.Int
	SubmittedAt time.Time
	Seq         int64
}

// Outcome is the result of winner selection.
type Outcome struct {
	Winner *Candidate
	// Ranked holds every candidate at or above reserve, winner first.
	Ranked []*Candidate
	// BelowReserve holds candidates filtered out before ranking.
	BelowReserve []*Candidate
}

// SelectWinner filters candidates below reserve, then ranks the rest by
// amount descending with ties going to the earliest submission. A nil
// reserve admits every positive amount.
func SelectWinner(candidates []*Candidate, reserve *big.Int) (*Outcome, error) {
	out := &Outcome{}
	for _, c := range candidates {
		if c == nil || c.Amount == nil || c.Amount.Sign() <= 0 {
			continue
		}
		if reserve != nil && c.Amount.Cmp(reserve) < 0 {
			out.BelowReserve = append(out.BelowReserve, c)
			continue
		}
		out.Ranked = append(out.Ranked, c)
	}
	if len(out.Ranked) == 0 {
		return out, ErrNoValidBids
	}

	slices.SortStableFunc(out.Ranked, Compare)
	out.Winner = out.Ranked[0]
	return out, nil
}

// Compare orders a before b when a beats b.
func Compare(a, b *Candidate) int {
	return cmp.Or(
		b.Amount.Cmp(a.Amount),
		a.SubmittedAt.Compare(b.SubmittedAt),
		cmp.Compare(a.Seq, b.Seq),
		strings.Compare(a.BidID, b.BidID),
	)
}

// Digest commits to the ranking so audit logs can be compared across
// resolver runs without revealing amounts.
func (o *Outcome) Digest() common.Hash {
	parts := make([][]byte, 0, 3*len(o.Ranked))
	for _, c := range o.Ranked {
		var seq [8]byte
		binary.BigEndian.PutUint64(seq[:], uint64(c.Seq))
		parts = append(parts, []byte(c.BidID), common.LeftPadBytes(c.Amount.Bytes(), 32), seq[:])
	}
	return hashing.Keccak256(parts...)
}
