// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/maskbid/maskbid/pkg/log"
)

// maxSwapAttempts bounds optimistic retries of a conditional update.
const maxSwapAttempts = 8

// Config selects and configures the backend.
type Config struct {
	Type        string        `yaml:"type"` // memory, badger, supabase
	Path        string        `yaml:"path"`
	SupabaseURL string        `yaml:"supabase_url"`
	SupabaseKey string        `yaml:"-"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Storage is the persisted-store interface used by the synchronizer, the
// solver and the API. All writes are single-record and conditional.
type Storage struct {
	backend Backend
	log     log.Logger
	now     func() time.Time

	seqMu   sync.Mutex
	lastSeq int64
}

// NewStorage creates a storage instance for the configured backend type.
func NewStorage(cfg Config, logger log.Logger) (*Storage, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Type {
	case "memory":
		backend = NewMemoryBackend()
	case "supabase":
		backend, err = NewSupabaseBackend(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Timeout)
	case "badger", "":
		backend, err = NewBadgerBackend(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, logger), nil
}

// New wraps an existing backend.
func New(backend Backend, logger log.Logger) *Storage {
	return &Storage{backend: backend, log: logger, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	s.now = now
	return s
}

// Backend returns the underlying backend.
func (s *Storage) Backend() Backend { return s.backend }

// Close closes the backend.
func (s *Storage) Close() error { return s.backend.Close() }

func setVersion(v any, version int64) {
	switch r := v.(type) {
	case *Asset:
		r.Version = version
	case *Auction:
		r.Version = version
	case *SealedBid:
		r.Version = version
	}
}

func decode[T any](rec Record) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", rec.Key, err)
	}
	setVersion(v, rec.Version)
	return v, nil
}

func load[T any](ctx context.Context, b Backend, table, key string) (*T, error) {
	rec, err := b.Get(ctx, table, key)
	if err != nil {
		return nil, err
	}
	return decode[T](rec)
}

func insert[T any](ctx context.Context, b Backend, table, key string, v *T) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	rec, err := b.Insert(ctx, table, key, data)
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	setVersion(v, rec.Version)
	return true, nil
}

// update runs a read-mutate-swap loop. The mutator sees a fresh copy each
// attempt; returning ErrNoChange ends the loop without a write and any other
// error aborts it.
func update[T any](ctx context.Context, b Backend, table, key string, mutate func(*T) error) (*T, error) {
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		rec, err := b.Get(ctx, table, key)
		if err != nil {
			return nil, err
		}
		v, err := decode[T](rec)
		if err != nil {
			return nil, err
		}
		if err := mutate(v); err != nil {
			if errors.Is(err, ErrNoChange) {
				return v, nil
			}
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		next, err := b.Swap(ctx, table, key, rec.Version, data)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		setVersion(v, next.Version)
		return v, nil
	}
	return nil, fmt.Errorf("%s/%s: %w after %d attempts", table, key, ErrConflict, maxSwapAttempts)
}

func find[T any](ctx context.Context, b Backend, table string, where Filter) ([]*T, error) {
	recs, err := b.Find(ctx, table, where)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		v, err := decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Assets

func (s *Storage) GetAssetByID(ctx context.Context, assetID string) (*Asset, error) {
	return load[Asset](ctx, s.backend, TableAssets, assetID)
}

// InsertAssetIfAbsent reports false when the asset already exists.
func (s *Storage) InsertAssetIfAbsent(ctx context.Context, a *Asset) (bool, error) {
	return insert(ctx, s.backend, TableAssets, a.AssetID, a)
}

// UpdateAssetFields applies mutate to an existing asset; ErrNotFound if absent.
func (s *Storage) UpdateAssetFields(ctx context.Context, assetID string, mutate func(*Asset) error) (*Asset, error) {
	return update(ctx, s.backend, TableAssets, assetID, mutate)
}

// Auctions

func (s *Storage) GetAuction(ctx context.Context, id string) (*Auction, error) {
	return load[Auction](ctx, s.backend, TableAuctions, id)
}

// GetAuctionByContractID finds the auction mapped to an on-chain auction id.
func (s *Storage) GetAuctionByContractID(ctx context.Context, contractID *big.Int) (*Auction, error) {
	auctions, err := find[Auction](ctx, s.backend, TableAuctions, Filter{"contractAuctionId": contractID.String()})
	if err != nil {
		return nil, err
	}
	if len(auctions) == 0 {
		return nil, ErrNotFound
	}
	return auctions[0], nil
}

// FindUnmappedAuction returns an open off-chain auction for the asset and
// seller that has no on-chain id yet.
func (s *Storage) FindUnmappedAuction(ctx context.Context, assetID, seller string) (*Auction, error) {
	auctions, err := find[Auction](ctx, s.backend, TableAuctions, Filter{
		"assetId":       assetID,
		"sellerAddress": seller,
	})
	if err != nil {
		return nil, err
	}
	for _, a := range auctions {
		if a.ContractAuctionID == nil && a.Status.Open() {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

// InsertAuctionIfAbsent reports false when the auction already exists.
func (s *Storage) InsertAuctionIfAbsent(ctx context.Context, a *Auction) (bool, error) {
	return insert(ctx, s.backend, TableAuctions, a.ID, a)
}

// UpdateAuction applies mutate conditionally. The mutator vetoes with
// ErrConflict when the stored state forbids the change.
func (s *Storage) UpdateAuction(ctx context.Context, id string, mutate func(*Auction) error) (*Auction, error) {
	return update(ctx, s.backend, TableAuctions, id, mutate)
}

// RecordDecision stores the resolution checkpoint on an open auction with no
// prior decision. When another resolver decided first, the stored auction is
// returned with ErrConflict so the caller can adopt its decision.
func (s *Storage) RecordDecision(ctx context.Context, id string, d *Decision) (*Auction, error) {
	var adopted *Auction
	a, err := s.UpdateAuction(ctx, id, func(a *Auction) error {
		if a.Decision != nil || !a.Status.Open() {
			adopted = a
			return ErrConflict
		}
		a.Decision = d
		return nil
	})
	if errors.Is(err, ErrConflict) && adopted != nil {
		return adopted, ErrConflict
	}
	return a, err
}

// UpdateAuctionResolution flips an open auction to resolved with the
// winner of its recorded decision. Already resolved with the same winner is
// a no-op. A sentinel contract id is kept on the decision only.
func (s *Storage) UpdateAuctionResolution(ctx context.Context, id string, d *Decision) (*Auction, error) {
	return s.UpdateAuction(ctx, id, func(a *Auction) error {
		if a.Decision == nil || a.Decision.BidID != d.BidID {
			return ErrConflict
		}
		if a.Status == AuctionResolved {
			return ErrNoChange
		}
		if !a.Status.Open() {
			return ErrConflict
		}
		a.Status = AuctionResolved
		a.WinnerAddress = d.Winner
		a.WinningAmount = new(big.Int).Set(d.Amount)
		if !d.NeedsReconciliation {
			a.ContractAuctionID = d.ContractAuctionID
		}
		a.ResolvedAt = s.now().UTC()
		return nil
	})
}

// Bids

func (s *Storage) GetBid(ctx context.Context, id string) (*SealedBid, error) {
	return load[SealedBid](ctx, s.backend, TableBids, id)
}

// GetBidByCommitment finds a bid by its commitment hash within an auction.
func (s *Storage) GetBidByCommitment(ctx context.Context, auctionID, commitment string) (*SealedBid, error) {
	bids, err := find[SealedBid](ctx, s.backend, TableBids, Filter{
		"auctionId":      auctionID,
		"commitmentHash": commitment,
	})
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, ErrNotFound
	}
	return bids[0], nil
}

// GetBidsForAuction returns every bid of an auction in submission order.
func (s *Storage) GetBidsForAuction(ctx context.Context, auctionID string) ([]*SealedBid, error) {
	bids, err := find[SealedBid](ctx, s.backend, TableBids, Filter{"auctionId": auctionID})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(bids, CompareSubmission)
	return bids, nil
}

// GetActiveBidsForAuction returns the auction's active bids in submission order.
func (s *Storage) GetActiveBidsForAuction(ctx context.Context, auctionID string) ([]*SealedBid, error) {
	bids, err := find[SealedBid](ctx, s.backend, TableBids, Filter{
		"auctionId": auctionID,
		"status":    string(BidActive),
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(bids, CompareSubmission)
	return bids, nil
}

// InsertBidIfAbsent reports false when the bid already exists.
func (s *Storage) InsertBidIfAbsent(ctx context.Context, b *SealedBid) (bool, error) {
	return insert(ctx, s.backend, TableBids, b.ID, b)
}

// UpdateBidStatus moves a bid from one status to another. A bid already at
// the target is left alone; a bid in any other state is a conflict.
func (s *Storage) UpdateBidStatus(ctx context.Context, id string, from, to BidStatus) error {
	_, err := s.UpdateBid(ctx, id, func(b *SealedBid) error {
		switch b.Status {
		case to:
			return ErrNoChange
		case from:
			b.Status = to
			return nil
		default:
			return ErrConflict
		}
	})
	return err
}

// UpdateBid applies mutate conditionally.
func (s *Storage) UpdateBid(ctx context.Context, id string, mutate func(*SealedBid) error) (*SealedBid, error) {
	return update(ctx, s.backend, TableBids, id, mutate)
}

// nextSeq returns a strictly increasing submission sequence number.
func (s *Storage) nextSeq(now time.Time) int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	seq := now.UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

// CompareSubmission orders bids by submission: time, then sequence, then id.
func CompareSubmission(a, b *SealedBid) int {
	return cmp.Or(
		a.SubmittedAt.Compare(b.SubmittedAt),
		cmp.Compare(a.Seq, b.Seq),
		strings.Compare(a.ID, b.ID),
	)
}
