// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package solver resolves sealed-bid auctions: it authenticates the caller,
// opens every active bid, picks the winner and persists the outcome as a
// resumable saga before encoding the on-chain report.
package solver

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/crypto"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/metric"
	"github.com/maskbid/maskbid/pkg/settlement"
	"github.com/maskbid/maskbid/pkg/storage"
)

// ActionResolve is the only accepted intent marker.
const ActionResolve = "resolve"

// State is a step of the resolution state machine.
type State string

const (
	StateUnauthorized   State = "Unauthorized"
	StateAuthorized     State = "Authorized"
	StateBidsFetched    State = "BidsFetched"
	StateDecrypted      State = "Decrypted"
	StateWinnerSelected State = "WinnerSelected"
	StatePersisted      State = "Persisted"
	StateReportEncoded  State = "ReportEncoded"
	StateRejected       State = "Rejected"
)

// Store is the slice of the persisted store the solver needs.
type Store interface {
	GetAuction(ctx context.Context, id string) (*storage.Auction, error)
	GetActiveBidsForAuction(ctx context.Context, auctionID string) ([]*storage.SealedBid, error)
	RecordDecision(ctx context.Context, id string, d *storage.Decision) (*storage.Auction, error)
	UpdateBidStatus(ctx context.Context, id string, from, to storage.BidStatus) error
	UpdateAuctionResolution(ctx context.Context, id string, d *storage.Decision) (*storage.Auction, error)
}

// Config is fixed at construction.
type Config struct {
	// Token is the pre-shared bearer secret of the resolution caller.
	Token string
	// DecryptAttempts bounds decryption tries per bid.
	DecryptAttempts int
	// AllowSentinelContractID resolves unmapped auctions against on-chain
	// id 0 and flags the result for reconciliation instead of rejecting.
	AllowSentinelContractID bool
}

// Request is an inbound resolution request.
type Request struct {
	Token             string
	AuctionID         string
	ContractAuctionID *big.Int
	Action            string
}

// Result describes every outcome. On rejection State is StateRejected and
// Stage is the last state reached.
type Result struct {
	AuctionID           string
	Winner              common.Address
	Amount              *big.Int // minor units
	AssetID             string
	ContractAuctionID   *big.Int
	TotalBids           int
	ValidBids           int
	Timestamp           time.Time
	Report              []byte
	State               State
	Stage               State
	Replayed            bool
	NeedsReconciliation bool
}

// AmountDecimal renders the winning amount in currency units.
func (r *Result) AmountDecimal() string {
	return settlement.FormatAmount(r.Amount)
}

// ReportHex renders the report as 0x-hex.
func (r *Result) ReportHex() string {
	return hexutil.Encode(r.Report)
}

// Solver is safe for concurrent use; it holds no per-auction state.
type Solver struct {
	cfg       Config
	store     Store
	decrypter crypto.Decrypter
	log       log.Logger
	metrics   *metric.Metrics
	now       func() time.Time
}

// New creates a solver. A nil decrypter leaves the solver misconfigured:
// every resolution is rejected.
func New(cfg Config, store Store, decrypter crypto.Decrypter, logger log.Logger, metrics *metric.Metrics) *Solver {
	if cfg.DecryptAttempts <= 0 {
		cfg.DecryptAttempts = 2
	}
	return &Solver{
		cfg:       cfg,
		store:     store,
		decrypter: decrypter,
		log:       logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Solver) WithClock(now func() time.Time) *Solver {
	s.now = now
	return s
}

// run carries one resolution through the state machine.
type run struct {
	req    Request
	result *Result
	log    log.Logger
}

func (r *run) advance(st State) {
	r.result.Stage = st
	r.log.Debug("resolution advanced", zap.String("state", string(st)))
}

// Resolve runs one resolution request to completion or rejection.
func (s *Solver) Resolve(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	r := &run{
		req:    req,
		result: &Result{AuctionID: req.AuctionID, Stage: StateUnauthorized},
		log:    s.log.With(zap.String("auctionId", req.AuctionID)),
	}

	err := s.resolve(ctx, r)

	outcome := "ok"
	if err != nil {
		r.result.State = StateRejected
		outcome = string(faults.KindOf(err))
		var fe *faults.Error
		if errors.As(err, &fe) && fe.AuctionID == "" && req.AuctionID != "" {
			err = fe.ForAuction(req.AuctionID, r.result.TotalBids)
		}
		logAt := r.log.Warn
		if faults.Is(err, faults.KindMisconfigured) || faults.Is(err, faults.KindTransport) {
			logAt = r.log.Error
		}
		logAt("resolution rejected",
			zap.String("code", outcome),
			zap.String("stage", string(r.result.Stage)),
			zap.Int("totalBids", r.result.TotalBids),
			zap.Error(err),
		)
	} else {
		r.result.State = StateReportEncoded
		if r.result.Replayed {
			outcome = "replayed"
		}
		r.log.Info("resolution complete",
			zap.String("winner", r.result.Winner.Hex()),
			zap.String("amount", r.result.AmountDecimal()),
			zap.Int("totalBids", r.result.TotalBids),
			zap.Int("validBids", r.result.ValidBids),
			zap.Bool("replayed", r.result.Replayed),
			zap.Bool("needsReconciliation", r.result.NeedsReconciliation),
		)
	}

	if s.metrics != nil {
		s.metrics.Resolutions.WithLabelValues(outcome).Inc()
		s.metrics.ResolutionDuration.Observe(s.now().Sub(start).Seconds())
	}
	return r.result, err
}

func (s *Solver) resolve(ctx context.Context, r *run) error {
	const op = "resolve"

	if err := s.authorize(r.req.Token, r.log); err != nil {
		return err
	}
	r.advance(StateAuthorized)

	if r.req.AuctionID == "" {
		return faults.New(faults.KindBadRequest, op, "auctionId is required")
	}
	if r.req.Action != ActionResolve {
		return faults.New(faults.KindBadRequest, op, `action must be "resolve"`)
	}

	auction, err := s.store.GetAuction(ctx, r.req.AuctionID)
	if err != nil {
		return storeErr(op, err)
	}
	r.result.AssetID = auction.AssetID

	switch auction.Status {
	case storage.AuctionResolved:
		return s.replay(auction, r)
	case storage.AuctionCancelled:
		return faults.New(faults.KindBadRequest, op, "auction is cancelled")
	}

	if auction.Decision != nil {
		r.log.Info("resuming from recorded decision", zap.String("bidId", auction.Decision.BidID))
		return s.finish(ctx, auction.Decision, r)
	}

	contractID, reconcile, err := s.contractID(auction, r.req.ContractAuctionID)
	if err != nil {
		return err
	}

	bids, err := s.store.GetActiveBidsForAuction(ctx, auction.ID)
	if err != nil {
		return storeErr(op, err)
	}
	r.result.TotalBids = len(bids)
	r.advance(StateBidsFetched)
	if len(bids) == 0 {
		// A concurrent resolver may have finalised every bid since the
		// auction was read.
		latest, err := s.store.GetAuction(ctx, auction.ID)
		if err != nil {
			return storeErr(op, err)
		}
		switch {
		case latest.Status == storage.AuctionResolved:
			return s.replay(latest, r)
		case latest.Decision != nil:
			return s.finish(ctx, latest.Decision, r)
		}
		return faults.New(faults.KindNoBids, op, "auction has no active bids")
	}

	decision, err := s.decide(ctx, auction, bids, r)
	if err != nil {
		return err
	}
	decision.ContractAuctionID = contractID
	decision.NeedsReconciliation = reconcile

	stored, err := s.store.RecordDecision(ctx, auction.ID, decision)
	if errors.Is(err, storage.ErrConflict) && stored != nil {
		switch {
		case stored.Decision != nil:
			r.log.Info("adopting concurrently recorded decision", zap.String("bidId", stored.Decision.BidID))
			decision = stored.Decision
		case stored.Status == storage.AuctionResolved:
			return s.replay(stored, r)
		default:
			return faults.Wrap(faults.KindConflict, op, errors.New("auction closed during resolution"))
		}
	} else if err != nil {
		return storeErr(op, err)
	}

	return s.finish(ctx, decision, r)
}

func (s *Solver) authorize(token string, logger log.Logger) error {
	const op = "authorize"
	if s.cfg.Token == "" {
		return faults.New(faults.KindMisconfigured, op, "resolution secret is not configured")
	}
	if !crypto.TokenEqual(s.cfg.Token, token) {
		logger.Warn("resolution credential mismatch",
			zap.String("expected", log.Redact(s.cfg.Token)),
			zap.String("received", log.Redact(token)),
		)
		return faults.New(faults.KindUnauthorized, op, "invalid bearer credential")
	}
	if s.decrypter == nil {
		return faults.New(faults.KindMisconfigured, op, "bid decryption key is not configured")
	}
	return nil
}

// contractID resolves the on-chain auction id before anything is written.
func (s *Solver) contractID(a *storage.Auction, requested *big.Int) (*big.Int, bool, error) {
	const op = "contract id"
	switch {
	case requested != nil && a.ContractAuctionID != nil:
		if requested.Cmp(a.ContractAuctionID) != 0 {
			return nil, false, faults.New(faults.KindConflict, op, "requested contract auction id differs from stored mapping")
		}
		return a.ContractAuctionID, false, nil
	case requested != nil:
		return requested, false, nil
	case a.ContractAuctionID != nil:
		return a.ContractAuctionID, false, nil
	case s.cfg.AllowSentinelContractID:
		return new(big.Int), true, nil
	default:
		return nil, false, faults.New(faults.KindUnmapped, op, "auction has no on-chain id")
	}
}

// replay reports a stored resolution without writing anything.
func (s *Solver) replay(a *storage.Auction, r *run) error {
	const op = "replay"
	if a.WinningAmount == nil || a.WinnerAddress == "" {
		return faults.New(faults.KindConflict, op, "resolved auction has no recorded winner")
	}
	d := &storage.Decision{
		Winner:            a.WinnerAddress,
		Amount:            a.WinningAmount,
		ContractAuctionID: a.ContractAuctionID,
	}
	if a.Decision != nil {
		d.TotalBids = a.Decision.TotalBids
		d.ValidBids = a.Decision.ValidBids
		d.NeedsReconciliation = a.Decision.NeedsReconciliation
		if d.ContractAuctionID == nil {
			d.ContractAuctionID = a.Decision.ContractAuctionID
		}
	}
	if d.ContractAuctionID == nil {
		return faults.New(faults.KindUnmapped, op, "resolved auction has no on-chain id")
	}
	r.result.Replayed = true
	r.result.Timestamp = a.ResolvedAt
	r.log.Info("auction already resolved, replaying outcome")
	return s.encode(d, r)
}

// finish runs the persistence saga for a recorded decision and encodes the
// report.
func (s *Solver) finish(ctx context.Context, d *storage.Decision, r *run) error {
	if err := s.persist(ctx, r.req.AuctionID, d, r.log); err != nil {
		return err
	}
	r.advance(StatePersisted)
	r.result.Timestamp = s.now().UTC()
	return s.encode(d, r)
}

func (s *Solver) encode(d *storage.Decision, r *run) error {
	winner, err := ids.ParseAddress(d.Winner)
	if err != nil {
		return faults.Wrap(faults.KindConflict, "encode report", err)
	}
	report, err := settlement.EncodeReport(settlement.Report{
		AuctionID:     d.ContractAuctionID,
		Winner:        winner,
		WinningAmount: d.Amount,
	})
	if err != nil {
		return faults.Wrap(faults.KindConflict, "encode report", err)
	}

	res := r.result
	res.Winner = winner
	res.Amount = new(big.Int).Set(d.Amount)
	res.ContractAuctionID = new(big.Int).Set(d.ContractAuctionID)
	res.NeedsReconciliation = d.NeedsReconciliation
	res.ValidBids = d.ValidBids
	if d.TotalBids > 0 {
		res.TotalBids = d.TotalBids
	}
	res.Report = report
	r.advance(StateReportEncoded)
	return nil
}

// storeErr tags store failures with their taxonomy kind.
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
