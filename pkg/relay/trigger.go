// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/maskbid/maskbid/pkg/client"
	"github.com/maskbid/maskbid/pkg/crypto"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
)

const maxTriggerBytes = 64 << 10

type triggerResponse struct {
	Workflow  string `json:"workflow"`
	AuctionID string `json:"auctionId,omitempty"`
	Submitted bool   `json:"submitted"`
	TxHash    string `json:"txHash,omitempty"`
	Winner    string `json:"winner,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

// HTTPTrigger exposes an HTTPHandler. Callers present the same bearer secret
// the solver expects.
func HTTPTrigger(handle HTTPHandler, caps *Capabilities, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !crypto.TokenEqual(token, client.BearerToken(r.Header.Get("Authorization"))) {
			writeTriggerError(w, faults.New(faults.KindUnauthorized, "relay.trigger", "unauthorized"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTriggerBytes))
		if err != nil {
			writeTriggerError(w, faults.Wrap(faults.KindBadRequest, "relay.trigger", err))
			return
		}

		res, err := handle(r.Context(), caps, payload)
		if err != nil {
			caps.Log.Warn("trigger failed", log.Error(err))
			writeTriggerError(w, err)
			return
		}

		out := triggerResponse{Workflow: res.Workflow, AuctionID: res.Key, Submitted: res.Submitted}
		if res.Submitted {
			out.TxHash = res.TxHash.Hex()
		}
		if res.Resolution != nil {
			out.Winner = res.Resolution.Winner
			out.Amount = res.Resolution.Amount.String()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}

func writeTriggerError(w http.ResponseWriter, err error) {
	kind := faults.KindOf(err)
	body := client.ErrorResponse{Code: string(kind), Error: err.Error()}
	var fe *faults.Error
	if errors.As(err, &fe) {
		body.AuctionID = fe.AuctionID
		body.TotalBids = fe.BidCount
	}
	if kind == faults.KindUnknown {
		body.Code = "InternalError"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(faults.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(body)
}
