// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package syncer projects decoded contract events into the persisted store.
// Every application is idempotent under redelivery: inserts are
// insert-if-absent and counter updates are guarded by the log's delivery key.
package syncer

import (
	"context"
	"errors"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/events"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/metric"
	"github.com/maskbid/maskbid/pkg/settlement"
	"github.com/maskbid/maskbid/pkg/storage"
)

// Outcome describes what applying an event did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Store is the slice of the persisted store the synchronizer writes.
type Store interface {
	GetAssetByID(ctx context.Context, assetID string) (*storage.Asset, error)
	InsertAssetIfAbsent(ctx context.Context, a *storage.Asset) (bool, error)
	UpdateAssetFields(ctx context.Context, assetID string, mutate func(*storage.Asset) error) (*storage.Asset, error)
	GetAuction(ctx context.Context, id string) (*storage.Auction, error)
	GetAuctionByContractID(ctx context.Context, contractID *big.Int) (*storage.Auction, error)
	FindUnmappedAuction(ctx context.Context, assetID, seller string) (*storage.Auction, error)
	InsertAuctionIfAbsent(ctx context.Context, a *storage.Auction) (bool, error)
	UpdateAuction(ctx context.Context, id string, mutate func(*storage.Auction) error) (*storage.Auction, error)
	GetBidByCommitment(ctx context.Context, auctionID, commitment string) (*storage.SealedBid, error)
	UpdateBid(ctx context.Context, id string, mutate func(*storage.SealedBid) error) (*storage.SealedBid, error)
}

// Syncer is the sole writer of asset and auction lifecycle state.
type Syncer struct {
	store   Store
	log     log.Logger
	metrics *metric.Metrics
	now     func() time.Time
}

// New creates a synchronizer.
func New(store Store, logger log.Logger, metrics *metric.Metrics) *Syncer {
	return &Syncer{store: store, log: logger, metrics: metrics, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// EncodeReport is the on-chain encoding of a resolution outcome.
func EncodeReport(r settlement.Report) ([]byte, error) {
	return settlement.EncodeReport(r)
}

func (s *Syncer) observe(ev interface{ EventName() string }, outcome Outcome, err error) {
	if s.metrics == nil {
		return
	}
	label := string(outcome)
	if err != nil {
		label = string(faults.KindOf(err))
		if label == "" {
			label = "error"
		}
	}
	s.metrics.EventsApplied.WithLabelValues(ev.EventName(), label).Inc()
}

// storeErr tags store failures. Missing prerequisites are retriable.
func storeErr(op string, err error) error {
	switch {
	case faults.KindOf(err) != faults.KindUnknown:
		return err
	case errors.Is(err, storage.ErrNotFound):
		return faults.Wrap(faults.KindNotFound, op, err)
	case errors.Is(err, storage.ErrConflict):
		return faults.Wrap(faults.KindConflict, op, err)
	default:
		return faults.Wrap(faults.KindTransport, op, err)
	}
}

func bigOrZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}

func eventFields(m events.Meta) []zap.Field {
	return []zap.Field{
		zap.String("tx", m.TxHash.Hex()),
		zap.Uint("logIndex", m.LogIndex),
		zap.Uint64("block", m.BlockNumber),
	}
}

func unixTime(n *big.Int) time.Time {
	if n == nil || !n.IsInt64() {
		return time.Time{}
	}
	return time.Unix(n.Int64(), 0).UTC()
}
