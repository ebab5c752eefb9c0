// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package solver

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/storage"
)

// persist applies a recorded decision. Each step is idempotent, so a run
// interrupted anywhere is completed by the next attempt:
//
//  1. winning bid active → won
//  2. every other active bid → lost
//  3. auction → resolved, guarded by the decision
func (s *Solver) persist(ctx context.Context, auctionID string, d *storage.Decision, logger log.Logger) error {
	const op = "persist"

	if err := s.store.UpdateBidStatus(ctx, d.BidID, storage.BidActive, storage.BidWon); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return faults.Wrap(faults.KindConflict, op, errors.New("winning bid already finalised as lost"))
		}
		return storeErr(op, err)
	}

	active, err := s.store.GetActiveBidsForAuction(ctx, auctionID)
	if err != nil {
		return storeErr(op, err)
	}
	for _, bid := range active {
		if bid.ID == d.BidID {
			continue
		}
		err := s.store.UpdateBidStatus(ctx, bid.ID, storage.BidActive, storage.BidLost)
		if errors.Is(err, storage.ErrConflict) {
			// Another resolver already moved it; only won would be wrong.
			logger.Warn("bid changed under resolution", zap.String("bidId", bid.ID))
			continue
		}
		if err != nil {
			return storeErr(op, err)
		}
	}

	if _, err := s.store.UpdateAuctionResolution(ctx, auctionID, d); err != nil {
		return storeErr(op, err)
	}
	return nil
}
