// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/maskbid/maskbid/pkg/client"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/metric"
	"github.com/maskbid/maskbid/pkg/settlement"
	"github.com/maskbid/maskbid/pkg/solver"
)

// Report submission outcomes.
const (
	ReportSubmitted = "submitted"
	ReportFailed    = "failed"
	ReportSkipped   = "skipped"
)

var ErrReconciliation = errors.New("report carries a sentinel auction id")

// trigger is the HTTP trigger payload.
type trigger struct {
	AuctionID         string      `json:"auctionId"`
	ContractAuctionID *big.Int    `json:"-"`
	RawContractID     json.Number `json:"contractAuctionId"`
	Action            string      `json:"action"`
}

// ResolutionWorkflow asks the solver for an outcome, checks the report
// against the plaintext summary and delivers it on-chain.
type ResolutionWorkflow struct {
	metrics *metric.Metrics
}

func NewResolutionWorkflow(metrics *metric.Metrics) *ResolutionWorkflow {
	return &ResolutionWorkflow{metrics: metrics}
}

// Handle is an HTTPHandler.
func (w *ResolutionWorkflow) Handle(ctx context.Context, caps *Capabilities, payload []byte) (*Result, error) {
	t, err := parseTrigger(payload)
	if err != nil {
		caps.Log.Warn("rejected resolution trigger", log.Error(err))
		return &Result{Workflow: WorkflowResolution}, err
	}
	return w.resolve(ctx, caps, t)
}

func parseTrigger(payload []byte) (trigger, error) {
	const op = "relay.resolution"

	var t trigger
	if len(bytes.TrimSpace(payload)) == 0 {
		return t, faults.New(faults.KindBadRequest, op, "empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&t); err != nil {
		return t, faults.Wrap(faults.KindBadRequest, op, fmt.Errorf("malformed payload: %w", err))
	}
	if t.AuctionID == "" {
		return t, faults.New(faults.KindBadRequest, op, "auctionId is required")
	}
	switch t.Action {
	case "":
		t.Action = solver.ActionResolve
	case solver.ActionResolve:
	default:
		return t, faults.New(faults.KindBadRequest, op, fmt.Sprintf("unsupported action %q", t.Action))
	}
	if t.RawContractID != "" {
		id, ok := new(big.Int).SetString(t.RawContractID.String(), 10)
		if !ok || id.Sign() < 0 {
			return t, faults.New(faults.KindBadRequest, op, "contractAuctionId must be a non-negative integer")
		}
		t.ContractAuctionID = id
	}
	return t, nil
}

func (w *ResolutionWorkflow) resolve(ctx context.Context, caps *Capabilities, t trigger) (*Result, error) {
	const op = "relay.resolution"

	res := &Result{Workflow: WorkflowResolution, Key: t.AuctionID}
	logger := caps.Log.With(log.String("auctionId", t.AuctionID))

	if caps.Resolver == nil {
		return res, faults.New(faults.KindMisconfigured, op, "no resolver capability")
	}

	req := client.ResolveRequest{AuctionID: t.AuctionID, Action: t.Action}
	if req.Action == "" {
		req.Action = solver.ActionResolve
	}
	if t.ContractAuctionID != nil {
		req.ContractAuctionID = json.Number(t.ContractAuctionID.String())
	}
	resp, err := caps.Resolver.Resolve(ctx, req)
	if err != nil {
		return res, err
	}
	res.Resolution = resp

	rep, err := resp.Verify()
	if err != nil {
		logger.Error("solver returned an inconsistent report", log.Error(err))
		return res, faults.Wrap(faults.KindDecode, op, err)
	}
	if t.ContractAuctionID != nil && t.ContractAuctionID.Cmp(rep.AuctionID) != 0 {
		return res, faults.New(faults.KindConflict, op, "report auction id differs from the trigger")
	}
	if resp.NeedsReconciliation {
		logger.Error("refusing to deliver report without an on-chain auction id",
			log.String("winner", resp.Winner))
		w.count(ReportSkipped)
		return res, faults.Wrap(faults.KindUnmapped, op, ErrReconciliation)
	}

	if resp.Replayed {
		view, err := caps.Resolver.GetAuction(ctx, t.AuctionID)
		if err != nil {
			return res, err
		}
		if view.SettledOnChain {
			logger.Info("auction already settled on-chain")
			w.count(ReportSkipped)
			return res, nil
		}
	}

	if caps.Reports == nil {
		logger.Info("report delivery disabled",
			log.String("winner", resp.Winner),
			log.String("amount", resp.Amount.String()))
		w.count(ReportSkipped)
		return res, nil
	}

	raw, err := settlement.EncodeReport(rep)
	if err != nil {
		return res, faults.Wrap(faults.KindDecode, op, err)
	}
	hash, err := caps.Reports.WriteReport(ctx, raw)
	if err != nil {
		w.count(ReportFailed)
		logger.Error("report delivery failed", log.Error(err))
		return res, err
	}
	w.count(ReportSubmitted)
	res.TxHash = hash
	res.Submitted = true

	logger.Info("report delivered",
		log.String("tx", hash.Hex()),
		log.String("winner", resp.Winner),
		log.String("contractAuctionId", rep.AuctionID.String()),
		log.Int("totalBids", resp.TotalBids))
	return res, nil
}

func (w *ResolutionWorkflow) count(status string) {
	if w.metrics != nil {
		w.metrics.ReportsSubmitted.WithLabelValues(status).Inc()
	}
}
