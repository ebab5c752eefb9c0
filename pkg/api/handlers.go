// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maskbid/maskbid/pkg/client"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/solver"
	"github.com/maskbid/maskbid/pkg/storage"
)

const codeInternal = "InternalError"

// handleResolve always lets the solver authorize first, so a bad token
// yields 401 even when the body is malformed.
func (s *Server) handleResolve(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	req := solver.Request{Token: client.BearerToken(c.GetHeader("Authorization"))}
	var body client.ResolveRequest
	parseErr := readJSON(c, &body)
	if parseErr == nil {
		req.AuctionID = body.AuctionID
		req.Action = body.Action
		if body.ContractAuctionID != "" {
			id, ok := new(big.Int).SetString(body.ContractAuctionID.String(), 10)
			if ok && id.Sign() >= 0 {
				req.ContractAuctionID = id
			} else {
				parseErr = fmt.Errorf("contractAuctionId %q is not a non-negative integer", body.ContractAuctionID)
			}
		}
	}
	if parseErr != nil {
		// Authorization still runs; an empty auction id fails validation.
		req = solver.Request{Token: req.Token}
	}

	res, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		if parseErr != nil && faults.Is(err, faults.KindBadRequest) {
			err = faults.Wrap(faults.KindBadRequest, "api.resolve", parseErr)
		}
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolveResponse(res))
}

func resolveResponse(res *solver.Result) client.ResolveResponse {
	return client.ResolveResponse{
		AuctionID:           res.AuctionID,
		Winner:              ids.FormatAddress(res.Winner),
		Amount:              json.Number(res.AmountDecimal()),
		AmountMinor:         res.Amount.String(),
		AssetID:             res.AssetID,
		ContractAuctionID:   json.Number(res.ContractAuctionID.String()),
		TotalBids:           res.TotalBids,
		ValidBids:           res.ValidBids,
		Timestamp:           res.Timestamp.UTC(),
		Report:              res.ReportHex(),
		Replayed:            res.Replayed,
		NeedsReconciliation: res.NeedsReconciliation,
	}
}

func (s *Server) handleSubmitBid(c *gin.Context) {
	const op = "api.submit_bid"

	var body client.BidRequest
	if err := readJSON(c, &body); err != nil {
		s.writeError(c, faults.Wrap(faults.KindBadRequest, op, err))
		return
	}

	bid, err := s.store.SubmitBid(c.Request.Context(), storage.SubmitBidRequest{
		AuctionID:        body.AuctionID,
		BidderAddress:    body.BidderAddress,
		EncryptedPayload: body.EncryptedPayload,
		EscrowTxHash:     body.EscrowTxHash,
	})
	if err != nil {
		s.writeError(c, storeErr(op, err))
		return
	}
	if s.metrics != nil {
		s.metrics.BidsSubmitted.Inc()
	}
	s.log.Info("sealed bid accepted",
		log.String("auctionId", bid.AuctionID),
		log.String("bidId", bid.ID),
		log.String("bidder", bid.BidderAddress))

	c.JSON(http.StatusCreated, client.BidReceipt{
		BidID:          bid.ID,
		AuctionID:      bid.AuctionID,
		CommitmentHash: bid.CommitmentHash,
		Status:         string(bid.Status),
		SubmittedAt:    bid.SubmittedAt.UTC(),
	})
}

func (s *Server) handleGetAuction(c *gin.Context) {
	const op = "api.get_auction"
	ctx := c.Request.Context()

	a, err := s.store.GetAuction(ctx, c.Param("id"))
	if err != nil {
		s.writeError(c, storeErr(op, err))
		return
	}
	bids, err := s.store.GetBidsForAuction(ctx, a.ID)
	if err != nil {
		s.writeError(c, storeErr(op, err))
		return
	}
	c.JSON(http.StatusOK, auctionView(a, len(bids)))
}

func auctionView(a *storage.Auction, totalBids int) client.AuctionView {
	view := client.AuctionView{
		ID:              a.ID,
		AssetID:         a.AssetID,
		Seller:          a.SellerAddress,
		ReservePrice:    bigString(a.ReservePrice),
		DepositRequired: bigString(a.DepositRequired),
		StartedAt:       a.StartedAt.UTC(),
		EndsAt:          a.EndsAt.UTC(),
		Status:          string(a.Status),
		TotalBids:       totalBids,
		SettledOnChain:  a.SettledOnChain,
	}
	if a.ContractAuctionID != nil {
		view.ContractAuctionID = a.ContractAuctionID.String()
	}
	if a.Status == storage.AuctionResolved {
		view.Winner = a.WinnerAddress
		view.WinningAmount = bigString(a.WinningAmount)
		resolvedAt := a.ResolvedAt.UTC()
		view.ResolvedAt = &resolvedAt
	}
	return view
}

// writeError renders the taxonomy. Internal failures do not echo their
// cause to the caller.
func (s *Server) writeError(c *gin.Context, err error) {
	kind := faults.KindOf(err)
	status := faults.HTTPStatus(kind)

	body := client.ErrorResponse{Code: string(kind), Error: err.Error()}
	var fe *faults.Error
	if errors.As(err, &fe) {
		body.AuctionID = fe.AuctionID
		body.TotalBids = fe.BidCount
	}
	switch kind {
	case faults.KindUnknown:
		body.Code = codeInternal
		body.Error = http.StatusText(status)
	case faults.KindUnauthorized:
		body.Error = "unauthorized"
	case faults.KindMisconfigured, faults.KindTransport:
		body.Error = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			log.String("route", c.FullPath()),
			log.String("requestId", c.GetString(requestIDKey)),
			log.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

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

func readJSON(c *gin.Context, out any) error {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("malformed body: %w", err)
	}
	return nil
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
