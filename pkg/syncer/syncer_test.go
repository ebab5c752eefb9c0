// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package syncer

import (
	"context"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/maskbid/maskbid/internal/testing/chainlog"
	teststorage "github.com/maskbid/maskbid/internal/testing/storage"
	"github.com/maskbid/maskbid/pkg/events"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/metric"
	"github.com/maskbid/maskbid/pkg/settlement"
	"github.com/maskbid/maskbid/pkg/storage"
)

var (
	epoch  = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	issuer = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	seller = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	bidder = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

type fixture struct {
	t       *testing.T
	backend *teststorage.Backend
	store   *storage.Storage
	syncer  *Syncer
	logs    *observer.ObservedLogs
	assets  *events.AssetDecoder
	auction *events.AuctionDecoder
}

func newFixture(t *testing.T) *fixture {
	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		t:       t,
		backend: teststorage.NewMemory(),
		logs:    logs,
		assets:  events.NewAssetDecoder(),
		auction: events.NewAuctionDecoder(),
	}
	f.store = storage.New(f.backend, log.NoOp()).WithClock(func() time.Time { return epoch })
	f.syncer = New(f.store, log.Wrap(zap.New(core)), metric.MustNew()).WithClock(func() time.Time { return epoch })
	return f
}

func (f *fixture) assetEvent(tx string, index uint, name string, args ...any) events.AssetEvent {
	f.t.Helper()
	l := chainlog.At(chainlog.MustBuild(f.t, events.AssetABI(), name, args...), tx, index, 100)
	ev, err := f.assets.Decode(l)
	require.NoError(f.t, err)
	return ev
}

func (f *fixture) auctionEvent(tx string, index uint, name string, args ...any) events.AuctionEvent {
	f.t.Helper()
	l := chainlog.At(chainlog.MustBuild(f.t, events.AuctionABI(), name, args...), tx, index, 200)
	ev, err := f.auction.Decode(l)
	require.NoError(f.t, err)
	return ev
}

func (f *fixture) applyAsset(ev events.AssetEvent) Outcome {
	f.t.Helper()
	out, err := f.syncer.ApplyAssetEvent(context.Background(), ev)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) applyAuction(ev events.AuctionEvent) Outcome {
	f.t.Helper()
	out, err := f.syncer.ApplyAuctionEvent(context.Background(), ev)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) registered(assetID int64) events.AssetEvent {
	return f.assetEvent("register", 0, "AssetRegistered",
		big.NewInt(assetID), issuer, "Gold Bar", "GLD", "commodity", "1kg", "SN-42",
		big.NewInt(1000_000000), big.NewInt(50_000000), big.NewInt(7200))
}

func TestAssetRegisteredRedeliveryCreatesOneRecord(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ev := f.registered(42)

	require.Equal(OutcomeApplied, f.applyAsset(ev))
	require.Equal(OutcomeDuplicate, f.applyAsset(ev))

	records, err := f.backend.Find(context.Background(), storage.TableAssets, nil)
	require.NoError(err)
	require.Len(records, 1)

	asset, err := f.store.GetAssetByID(context.Background(), "42")
	require.NoError(err)
	require.Equal("Gold Bar", asset.Name)
	require.Equal("GLD", asset.Symbol)
	require.Equal("SN-42", asset.SerialNumber)
	require.Equal(ids.FormatAddress(issuer), asset.Issuer)
	require.Equal(big.NewInt(1000_000000), asset.ReservePrice)
	require.Equal(int64(2), asset.AuctionDurationHours)
	require.False(asset.Verified)
	require.Zero(asset.MintedSupply.Sign())
}

func TestAssetEventsAreIdempotent(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	f.applyAsset(f.registered(1))

	verified := f.assetEvent("verify", 0, "AssetVerified", big.NewInt(1), true, "audited")
	minted := f.assetEvent("mint", 0, "TokensMinted", big.NewInt(1), big.NewInt(500), issuer, "initial")
	redeemed := f.assetEvent("redeem", 3, "TokensRedeemed", big.NewInt(1), big.NewInt(20), bidder, "vault")

	for _, ev := range []events.AssetEvent{verified, minted, redeemed} {
		require.Equal(OutcomeApplied, f.applyAsset(ev))
	}
	once, err := f.store.GetAssetByID(context.Background(), "1")
	require.NoError(err)

	f.backend.Reset()
	for _, ev := range []events.AssetEvent{verified, minted, redeemed} {
		require.Equal(OutcomeDuplicate, f.applyAsset(ev))
	}
	require.Equal(0, f.backend.Writes())

	twice, err := f.store.GetAssetByID(context.Background(), "1")
	require.NoError(err)
	require.Equal(once, twice)
	require.True(twice.Verified)
	require.Equal("audited", twice.VerificationDetails)
	require.Equal(int64(500), twice.MintedSupply.Int64())
	require.Equal(int64(20), twice.RedeemedSupply.Int64())
}

func TestSupplyCountersAccumulateDistinctLogs(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	f.applyAsset(f.registered(1))

	f.applyAsset(f.assetEvent("mint", 0, "TokensMinted", big.NewInt(1), big.NewInt(5), issuer, "a"))
	f.applyAsset(f.assetEvent("mint", 1, "TokensMinted", big.NewInt(1), big.NewInt(7), issuer, "b"))

	asset, err := f.store.GetAssetByID(context.Background(), "1")
	require.NoError(err)
	require.Equal(int64(12), asset.MintedSupply.Int64())
}

func TestVerifiedOnlyOnce(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	f.applyAsset(f.registered(1))

	require.Equal(OutcomeApplied, f.applyAsset(f.assetEvent("v1", 0, "AssetVerified", big.NewInt(1), true, "first")))
	require.Equal(OutcomeDuplicate, f.applyAsset(f.assetEvent("v2", 0, "AssetVerified", big.NewInt(1), false, "second")))

	asset, err := f.store.GetAssetByID(context.Background(), "1")
	require.NoError(err)
	require.True(asset.Verified)
	require.Equal("first", asset.VerificationDetails)
}

func TestAssetEventBeforeRegistrationIsRetriable(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	minted := f.assetEvent("mint", 0, "TokensMinted", big.NewInt(9), big.NewInt(5), issuer, "early")

	out, err := f.syncer.ApplyAssetEvent(context.Background(), minted)
	require.Equal(OutcomeIgnored, out)
	require.True(faults.Is(err, faults.KindNotFound))
	require.True(faults.Retriable(err))

	f.applyAsset(f.registered(9))
	require.Equal(OutcomeApplied, f.applyAsset(minted))
}

func TestAssetTransportErrorSurfaces(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	f.backend.FailOn(teststorage.OpInsert, storage.TableAssets, 0, context.DeadlineExceeded)

	_, err := f.syncer.ApplyAssetEvent(context.Background(), f.registered(1))
	require.True(faults.Is(err, faults.KindTransport))
}

func (f *fixture) created(contractID int64) events.AuctionEvent {
	return f.auctionEvent("create", 0, "AuctionCreated",
		big.NewInt(contractID), big.NewInt(42), seller,
		big.NewInt(1000_000000), big.NewInt(50_000000), big.NewInt(epoch.Add(48*time.Hour).Unix()))
}

func TestAuctionCreatedDeterministicID(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ev := f.created(7)

	require.Equal(OutcomeApplied, f.applyAuction(ev))
	require.Equal(OutcomeDuplicate, f.applyAuction(ev))

	a, err := f.store.GetAuction(context.Background(), ids.AuctionIDFromContract(big.NewInt(7)))
	require.NoError(err)
	require.Equal(int64(7), a.ContractAuctionID.Int64())
	require.Equal("42", a.AssetID)
	require.Equal(ids.FormatAddress(seller), a.SellerAddress)
	require.Equal(storage.AuctionActive, a.Status)
	require.Equal(epoch.Add(48*time.Hour), a.EndsAt)
}

func TestAuctionCreatedLinksPendingAuction(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.InsertAuctionIfAbsent(ctx, &storage.Auction{
		ID:            "offchain-1",
		AssetID:       "42",
		SellerAddress: ids.FormatAddress(seller),
		Status:        storage.AuctionActive,
	})
	require.NoError(err)

	ev := f.created(7)
	require.Equal(OutcomeApplied, f.applyAuction(ev))
	require.Equal(OutcomeDuplicate, f.applyAuction(ev))

	a, err := f.store.GetAuctionByContractID(ctx, big.NewInt(7))
	require.NoError(err)
	require.Equal("offchain-1", a.ID)
	require.Equal(big.NewInt(1000_000000), a.ReservePrice)

	_, err = f.store.GetAuction(ctx, ids.AuctionIDFromContract(big.NewInt(7)))
	require.ErrorIs(err, storage.ErrNotFound)
}

func TestBidPlacedConfirmsSealedBid(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.applyAuction(f.created(7))

	auctionID := ids.AuctionIDFromContract(big.NewInt(7))
	bid, err := f.store.SubmitBid(ctx, storage.SubmitBidRequest{
		AuctionID:        auctionID,
		BidderAddress:    bidder.Hex(),
		EncryptedPayload: base64.StdEncoding.EncodeToString([]byte("sealed")),
	})
	require.NoError(err)

	placed := f.auctionEvent("escrow", 4, "BidPlaced",
		big.NewInt(7), bidder, [32]byte(common.HexToHash(bid.CommitmentHash)), big.NewInt(50_000000))
	require.Equal(OutcomeApplied, f.applyAuction(placed))
	require.Equal(OutcomeDuplicate, f.applyAuction(placed))

	got, err := f.store.GetBid(ctx, bid.ID)
	require.NoError(err)
	require.True(got.OnChainConfirmed)
	require.Equal(placed.EventMeta().TxHash.Hex(), got.EscrowTxHash)
	require.Equal(storage.BidActive, got.Status)

	unknown := f.auctionEvent("escrow", 5, "BidPlaced", big.NewInt(7), bidder, [32]byte{1}, big.NewInt(1))
	_, err = f.syncer.ApplyAuctionEvent(ctx, unknown)
	require.True(faults.Is(err, faults.KindNotFound))

	other := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	spoofed := f.auctionEvent("escrow", 6, "BidPlaced",
		big.NewInt(7), other, [32]byte(common.HexToHash(bid.CommitmentHash)), big.NewInt(1))
	require.Equal(OutcomeIgnored, f.applyAuction(spoofed))
	require.Equal(1, f.logs.FilterMessage("on-chain bidder does not match sealed bid").Len())
}

func TestAuctionLifecycleEvents(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.applyAuction(f.created(7))
	id := ids.AuctionIDFromContract(big.NewInt(7))

	ended := f.auctionEvent("end", 0, "AuctionEnded", big.NewInt(7), big.NewInt(3))
	require.Equal(OutcomeApplied, f.applyAuction(ended))
	require.Equal(OutcomeDuplicate, f.applyAuction(ended))

	a, err := f.store.GetAuction(ctx, id)
	require.NoError(err)
	require.Equal(storage.AuctionEnded, a.Status)
	require.Equal(int64(3), a.OnChainBidCount)

	cancelled := f.auctionEvent("cancel", 0, "AuctionCancelled", big.NewInt(7))
	require.Equal(OutcomeApplied, f.applyAuction(cancelled))
	a, err = f.store.GetAuction(ctx, id)
	require.NoError(err)
	require.Equal(storage.AuctionCancelled, a.Status)

	// A late AuctionEnded does not reopen a cancelled auction.
	late := f.auctionEvent("end", 1, "AuctionEnded", big.NewInt(7), big.NewInt(3))
	require.Equal(OutcomeApplied, f.applyAuction(late))
	a, err = f.store.GetAuction(ctx, id)
	require.NoError(err)
	require.Equal(storage.AuctionCancelled, a.Status)

	_, err = f.syncer.ApplyAuctionEvent(ctx, f.auctionEvent("end", 2, "AuctionEnded", big.NewInt(8), big.NewInt(0)))
	require.True(faults.Is(err, faults.KindNotFound))
}

func TestAuctionResolvedMarksSettlement(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.applyAuction(f.created(7))
	id := ids.AuctionIDFromContract(big.NewInt(7))

	d := &storage.Decision{BidID: "b1", Winner: ids.FormatAddress(bidder), Amount: big.NewInt(1500_000000), ContractAuctionID: big.NewInt(7)}
	_, err := f.store.RecordDecision(ctx, id, d)
	require.NoError(err)
	_, err = f.store.UpdateAuctionResolution(ctx, id, d)
	require.NoError(err)

	resolved := f.auctionEvent("settle", 0, "AuctionResolved", big.NewInt(7), bidder, big.NewInt(1500_000000))
	require.Equal(OutcomeApplied, f.applyAuction(resolved))
	require.Equal(OutcomeDuplicate, f.applyAuction(resolved))

	a, err := f.store.GetAuction(ctx, id)
	require.NoError(err)
	require.True(a.SettledOnChain)
	require.Equal(resolved.EventMeta().TxHash.Hex(), a.SettlementTx)
	require.Zero(f.logs.FilterMessage("on-chain settlement disagrees with resolution").Len())

	mismatch := f.auctionEvent("settle", 1, "AuctionResolved", big.NewInt(7), seller, big.NewInt(1))
	require.Equal(OutcomeApplied, f.applyAuction(mismatch))
	entries := f.logs.FilterMessage("on-chain settlement disagrees with resolution").All()
	require.Len(entries, 1)
	require.Equal(zapcore.ErrorLevel, entries[0].Level)

	a, err = f.store.GetAuction(ctx, id)
	require.NoError(err)
	require.Equal(ids.FormatAddress(bidder), a.WinnerAddress)
}

func TestEncodeReportDelegates(t *testing.T) {
	require := require.New(t)
	out, err := EncodeReport(settlement.Report{
		AuctionID:     big.NewInt(7),
		Winner:        bidder,
		WinningAmount: big.NewInt(250_000000),
	})
	require.NoError(err)
	require.Len(out, settlement.ReportSize)
}
