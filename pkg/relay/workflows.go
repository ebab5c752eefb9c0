// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/events"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/storage"
	"github.com/maskbid/maskbid/pkg/syncer"
)

const (
	WorkflowAsset      = "asset"
	WorkflowAuction    = "auction"
	WorkflowResolution = "resolution"
)

// AssetApplier applies asset-registry events.
type AssetApplier interface {
	ApplyAssetEvent(ctx context.Context, ev events.AssetEvent) (syncer.Outcome, error)
}

// AuctionApplier applies auction-house events.
type AuctionApplier interface {
	ApplyAuctionEvent(ctx context.Context, ev events.AuctionEvent) (syncer.Outcome, error)
}

// AuctionLookup maps an on-chain auction id to the stored auction.
type AuctionLookup interface {
	GetAuctionByContractID(ctx context.Context, contractID *big.Int) (*storage.Auction, error)
}

// AssetWorkflow decodes asset-registry logs and applies them.
type AssetWorkflow struct {
	decoder *events.AssetDecoder
	sync    AssetApplier
}

func NewAssetWorkflow(sync AssetApplier) *AssetWorkflow {
	return &AssetWorkflow{decoder: events.NewAssetDecoder(), sync: sync}
}

// Topics lists the event signatures this workflow subscribes to.
func (w *AssetWorkflow) Topics() []common.Hash {
	return events.Topics(events.AssetABI())
}

// Handle is a LogHandler.
func (w *AssetWorkflow) Handle(ctx context.Context, caps *Capabilities, l types.Log) (*Result, error) {
	res := &Result{Workflow: WorkflowAsset, Key: events.Meta{TxHash: l.TxHash, LogIndex: l.Index}.Key()}
	ev, err := w.decoder.Decode(l)
	if err != nil {
		return decodeFailure(caps, res, l, err)
	}
	res.Event = ev.EventName()
	res.Outcome, err = w.sync.ApplyAssetEvent(ctx, ev)
	return res, err
}

// AuctionWorkflow decodes auction-house logs and applies them. With
// resolveOnEnded set, a freshly applied AuctionEnded also triggers
// resolution.
type AuctionWorkflow struct {
	decoder        *events.AuctionDecoder
	sync           AuctionApplier
	lookup         AuctionLookup
	resolution     *ResolutionWorkflow
	resolveOnEnded bool
}

func NewAuctionWorkflow(sync AuctionApplier) *AuctionWorkflow {
	return &AuctionWorkflow{decoder: events.NewAuctionDecoder(), sync: sync}
}

// ResolveOnEnded enables automatic resolution once the contract ends an
// auction.
func (w *AuctionWorkflow) ResolveOnEnded(lookup AuctionLookup, resolution *ResolutionWorkflow) *AuctionWorkflow {
	w.lookup = lookup
	w.resolution = resolution
	w.resolveOnEnded = true
	return w
}

func (w *AuctionWorkflow) Topics() []common.Hash {
	return events.Topics(events.AuctionABI())
}

// Handle is a LogHandler.
func (w *AuctionWorkflow) Handle(ctx context.Context, caps *Capabilities, l types.Log) (*Result, error) {
	res := &Result{Workflow: WorkflowAuction, Key: events.Meta{TxHash: l.TxHash, LogIndex: l.Index}.Key()}
	ev, err := w.decoder.Decode(l)
	if err != nil {
		return decodeFailure(caps, res, l, err)
	}
	res.Event = ev.EventName()
	res.Outcome, err = w.sync.ApplyAuctionEvent(ctx, ev)
	if err != nil {
		return res, err
	}

	if ended, ok := ev.(*events.AuctionEnded); ok && w.resolveOnEnded && res.Outcome == syncer.OutcomeApplied {
		w.resolveEnded(ctx, caps, ended, res)
	}
	return res, nil
}

// resolveEnded never fails the log delivery: the event is already applied
// and redelivery would be a duplicate. Operators re-trigger over HTTP.
func (w *AuctionWorkflow) resolveEnded(ctx context.Context, caps *Capabilities, e *events.AuctionEnded, res *Result) {
	logger := caps.Log.With(zap.Stringer("contractAuctionId", e.AuctionID))

	a, err := w.lookup.GetAuctionByContractID(ctx, e.AuctionID)
	if err != nil {
		logger.Error("cannot resolve ended auction", log.Error(err))
		return
	}
	out, err := w.resolution.resolve(ctx, caps, trigger{AuctionID: a.ID, ContractAuctionID: e.AuctionID})
	switch {
	case faults.Is(err, faults.KindNoBids), faults.Is(err, faults.KindNoValidBids):
		logger.Warn("ended auction has no winner", log.String("auctionId", a.ID), log.Error(err))
	case err != nil:
		logger.Error("resolution after end failed", log.String("auctionId", a.ID), log.Error(err))
	default:
		res.Resolution = out.Resolution
		res.TxHash = out.TxHash
		res.Submitted = out.Submitted
	}
}

// decodeFailure treats unknown events as no-ops and surfaces malformed
// ones as DecodeError.
func decodeFailure(caps *Capabilities, res *Result, l types.Log, err error) (*Result, error) {
	fields := []zap.Field{
		log.String("workflow", res.Workflow),
		log.String("key", res.Key),
		zap.Uint64("block", l.BlockNumber),
	}
	if errors.Is(err, events.ErrUnknownEvent) {
		caps.Log.Debug("ignoring unknown event", fields...)
		res.Outcome = syncer.OutcomeIgnored
		return res, nil
	}
	caps.Log.Error("malformed event", append(fields, log.Error(err))...)
	return res, faults.Wrap(faults.KindDecode, "relay."+res.Workflow, err)
}
