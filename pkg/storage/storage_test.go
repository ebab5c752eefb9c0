// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"encoding/base64"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/maskbid/maskbid/pkg/crypto"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStorage() *Storage {
	return New(NewMemoryBackend(), log.NoOp()).WithClock(func() time.Time { return epoch })
}

func seedAuction(t *testing.T, s *Storage, id string) *Auction {
	t.Helper()
	a := &Auction{
		ID:           id,
		AssetID:      "1",
		Status:       AuctionActive,
		ReservePrice: big.NewInt(1000_000000),
		StartedAt:    epoch.Add(-time.Hour),
		EndsAt:       epoch.Add(time.Hour),
	}
	ok, err := s.InsertAuctionIfAbsent(context.Background(), a)
	require.NoError(t, err)
	require.True(t, ok)
	return a
}

func TestNewStorageSelectsBackend(t *testing.T) {
	require := require.New(t)

	s, err := NewStorage(Config{Type: "memory"}, log.NoOp())
	require.NoError(err)
	require.IsType(&MemoryBackend{}, s.Backend())

	s, err = NewStorage(Config{Type: "badger"}, log.NoOp())
	require.NoError(err)
	require.IsType(&BadgerBackend{}, s.Backend())
	require.NoError(s.Close())

	_, err = NewStorage(Config{Type: "supabase"}, log.NoOp())
	require.True(faults.Is(err, faults.KindMisconfigured))

	_, err = NewStorage(Config{Type: "etcd"}, log.NoOp())
	require.Error(err)
}

func TestAssetInsertIfAbsent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()

	asset := &Asset{AssetID: "42", Name: "Gold", MintedSupply: big.NewInt(0), RedeemedSupply: big.NewInt(0)}
	ok, err := s.InsertAssetIfAbsent(ctx, asset)
	require.NoError(err)
	require.True(ok)
	require.Equal(int64(1), asset.Version)

	ok, err = s.InsertAssetIfAbsent(ctx, &Asset{AssetID: "42", Name: "Other"})
	require.NoError(err)
	require.False(ok)

	got, err := s.GetAssetByID(ctx, "42")
	require.NoError(err)
	require.Equal("Gold", got.Name)

	_, err = s.UpdateAssetFields(ctx, "43", func(a *Asset) error { return nil })
	require.ErrorIs(err, ErrNotFound)
}

func TestUpdateRetriesOnConcurrentWriters(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()

	_, err := s.InsertAssetIfAbsent(ctx, &Asset{AssetID: "1", MintedSupply: big.NewInt(0)})
	require.NoError(err)

	const writers = 4
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateAssetFields(ctx, "1", func(a *Asset) error {
				a.MintedSupply.Add(a.MintedSupply, big.NewInt(1))
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(err)
	}

	got, err := s.GetAssetByID(ctx, "1")
	require.NoError(err)
	require.Equal(int64(writers), got.MintedSupply.Int64())
	require.Equal(int64(writers+1), got.Version)
}

func TestUpdateNoChangeSkipsWrite(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()
	seedAuction(t, s, "a1")

	a, err := s.UpdateAuction(ctx, "a1", func(*Auction) error { return ErrNoChange })
	require.NoError(err)
	require.Equal(int64(1), a.Version)
}

func TestBidStatusTransitions(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()

	_, err := s.InsertBidIfAbsent(ctx, &SealedBid{ID: "b1", AuctionID: "a1", Status: BidActive})
	require.NoError(err)

	require.NoError(s.UpdateBidStatus(ctx, "b1", BidActive, BidWon))
	require.NoError(s.UpdateBidStatus(ctx, "b1", BidActive, BidWon))
	require.ErrorIs(s.UpdateBidStatus(ctx, "b1", BidActive, BidLost), ErrConflict)
	require.ErrorIs(s.UpdateBidStatus(ctx, "b1", BidWon, BidActive), ErrConflict)
	require.ErrorIs(s.UpdateBidStatus(ctx, "missing", BidActive, BidLost), ErrNotFound)

	b, err := s.GetBid(ctx, "b1")
	require.NoError(err)
	require.Equal(BidWon, b.Status)
}

func TestActiveBidsInSubmissionOrder(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()

	for _, b := range []*SealedBid{
		{ID: "z", AuctionID: "a1", Status: BidActive, SubmittedAt: epoch, Seq: 1},
		{ID: "y", AuctionID: "a1", Status: BidActive, SubmittedAt: epoch, Seq: 2},
		{ID: "x", AuctionID: "a1", Status: BidActive, SubmittedAt: epoch.Add(time.Second), Seq: 0},
		{ID: "w", AuctionID: "a1", Status: BidLost, SubmittedAt: epoch},
		{ID: "v", AuctionID: "a2", Status: BidActive, SubmittedAt: epoch},
	} {
		_, err := s.InsertBidIfAbsent(ctx, b)
		require.NoError(err)
	}

	bids, err := s.GetActiveBidsForAuction(ctx, "a1")
	require.NoError(err)
	require.Len(bids, 3)
	require.Equal("z", bids[0].ID)
	require.Equal("y", bids[1].ID)
	require.Equal("x", bids[2].ID)

	all, err := s.GetBidsForAuction(ctx, "a1")
	require.NoError(err)
	require.Len(all, 4)
}

func TestRecordDecisionAdoptsFirstWriter(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()
	seedAuction(t, s, "a1")

	first := &Decision{BidID: "b1", Winner: "0x01", Amount: big.NewInt(5), ContractAuctionID: big.NewInt(7)}
	a, err := s.RecordDecision(ctx, "a1", first)
	require.NoError(err)
	require.Equal("b1", a.Decision.BidID)

	second := &Decision{BidID: "b2", Winner: "0x02", Amount: big.NewInt(9)}
	a, err = s.RecordDecision(ctx, "a1", second)
	require.ErrorIs(err, ErrConflict)
	require.Equal("b1", a.Decision.BidID)

	resolved, err := s.UpdateAuctionResolution(ctx, "a1", first)
	require.NoError(err)
	require.Equal(AuctionResolved, resolved.Status)
	require.Equal("0x01", resolved.WinnerAddress)
	require.Equal(int64(5), resolved.WinningAmount.Int64())
	require.Equal(epoch, resolved.ResolvedAt)

	again, err := s.UpdateAuctionResolution(ctx, "a1", first)
	require.NoError(err)
	require.Equal(resolved.Version, again.Version)

	_, err = s.UpdateAuctionResolution(ctx, "a1", second)
	require.ErrorIs(err, ErrConflict)
}

func TestRecordDecisionRejectsClosedAuction(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()
	seedAuction(t, s, "a1")

	_, err := s.UpdateAuction(ctx, "a1", func(a *Auction) error {
		a.Status = AuctionCancelled
		return nil
	})
	require.NoError(err)

	a, err := s.RecordDecision(ctx, "a1", &Decision{BidID: "b1", Amount: big.NewInt(1)})
	require.ErrorIs(err, ErrConflict)
	require.Nil(a.Decision)
}

func TestGetAuctionByContractID(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()

	a := seedAuction(t, s, "a1")
	_, err := s.UpdateAuction(ctx, a.ID, func(a *Auction) error {
		a.ContractAuctionID = big.NewInt(7)
		return nil
	})
	require.NoError(err)

	got, err := s.GetAuctionByContractID(ctx, big.NewInt(7))
	require.NoError(err)
	require.Equal("a1", got.ID)

	_, err = s.GetAuctionByContractID(ctx, big.NewInt(8))
	require.ErrorIs(err, ErrNotFound)
}

func TestFindUnmappedAuction(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()

	_, err := s.InsertAuctionIfAbsent(ctx, &Auction{ID: "a1", AssetID: "1", SellerAddress: "0xaa", Status: AuctionActive})
	require.NoError(err)

	got, err := s.FindUnmappedAuction(ctx, "1", "0xaa")
	require.NoError(err)
	require.Equal("a1", got.ID)

	_, err = s.FindUnmappedAuction(ctx, "1", "0xbb")
	require.ErrorIs(err, ErrNotFound)
}

func TestSubmitBid(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()
	seedAuction(t, s, "a1")

	payload := []byte("sealed")
	bidder := "0x00000000000000000000000000000000000000AB"
	req := SubmitBidRequest{
		AuctionID:        "a1",
		BidderAddress:    bidder,
		EncryptedPayload: base64.StdEncoding.EncodeToString(payload),
	}

	first, err := s.SubmitBid(ctx, req)
	require.NoError(err)
	require.Equal(BidActive, first.Status)
	require.Equal("0x00000000000000000000000000000000000000ab", first.BidderAddress)
	require.Equal(crypto.CreateCommitment("a1", common.HexToAddress(bidder), payload), first.CommitmentHash)

	second, err := s.SubmitBid(ctx, req)
	require.NoError(err)
	require.Greater(second.Seq, first.Seq)

	byCommitment, err := s.GetBidByCommitment(ctx, "a1", first.CommitmentHash)
	require.NoError(err)
	require.Equal("a1", byCommitment.AuctionID)

	_, err = s.SubmitBid(ctx, SubmitBidRequest{AuctionID: "a1", BidderAddress: "nope", EncryptedPayload: "AA=="})
	require.True(faults.Is(err, faults.KindBadRequest))

	_, err = s.SubmitBid(ctx, SubmitBidRequest{AuctionID: "a1", BidderAddress: bidder, EncryptedPayload: "%%"})
	require.True(faults.Is(err, faults.KindBadRequest))

	_, err = s.SubmitBid(ctx, SubmitBidRequest{AuctionID: "zz", BidderAddress: bidder, EncryptedPayload: "AA=="})
	require.True(faults.Is(err, faults.KindNotFound))

	s.WithClock(func() time.Time { return epoch.Add(2 * time.Hour) })
	_, err = s.SubmitBid(ctx, req)
	require.True(faults.Is(err, faults.KindConflict))
	require.ErrorIs(err, ErrAuctionClosed)
}

func TestSubmitBidRejectedOnceDecided(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStorage()
	seedAuction(t, s, "a1")

	_, err := s.RecordDecision(ctx, "a1", &Decision{BidID: "b1", Winner: "0x01", Amount: big.NewInt(5)})
	require.NoError(err)

	_, err = s.SubmitBid(ctx, SubmitBidRequest{
		AuctionID:        "a1",
		BidderAddress:    "0x00000000000000000000000000000000000000ab",
		EncryptedPayload: base64.StdEncoding.EncodeToString([]byte("late")),
	})
	require.ErrorIs(err, ErrAuctionClosed)
	require.True(faults.Is(err, faults.KindConflict))

	bids, err := s.GetBidsForAuction(ctx, "a1")
	require.NoError(err)
	require.Empty(bids)
}
