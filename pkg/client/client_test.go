// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/settlement"
)

var carol = common.HexToAddress("0x00000000000000000000000000000000000ca401")

func resolved(t *testing.T) ResolveResponse {
	report, err := settlement.EncodeReportHex(settlement.Report{
		AuctionID:     big.NewInt(7),
		Winner:        carol,
		WinningAmount: settlement.ToMinor(1500),
	})
	require.NoError(t, err)
	return ResolveResponse{
		AuctionID:         "A1",
		Winner:            "0x00000000000000000000000000000000000ca401",
		Amount:            "1500",
		AmountMinor:       "1500000000",
		AssetID:           "asset-1",
		ContractAuctionID: "7",
		TotalBids:         3,
		ValidBids:         2,
		Timestamp:         time.Unix(1_700_000_000, 0).UTC(),
		Report:            report,
	}
}

func TestResolve(t *testing.T) {
	require := require.New(t)

	want := resolved(t)
	var (
		method, path, auth string
		sent               ResolveRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, auth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&sent)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second)
	got, err := c.Resolve(context.Background(), ResolveRequest{AuctionID: "A1", ContractAuctionID: "7", Action: "resolve"})
	require.NoError(err)
	require.Equal(http.MethodPost, method)
	require.Equal("/api/v1/resolve", path)
	require.Equal("Bearer secret", auth)
	require.Equal("A1", sent.AuctionID)
	require.Equal("resolve", sent.Action)
	require.Equal(json.Number("7"), sent.ContractAuctionID)
	require.Equal(want.Winner, got.Winner)
	require.Equal(json.Number("1500"), got.Amount)

	rep, err := got.Verify()
	require.NoError(err)
	require.Equal(carol, rep.Winner)
	require.Equal(0, rep.AuctionID.Cmp(big.NewInt(7)))
}

func TestResolveErrorCarriesKind(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorResponse{
			Error:     "no valid bids",
			Code:      string(faults.KindNoValidBids),
			AuctionID: "A3",
			TotalBids: 4,
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", 0).Resolve(context.Background(), ResolveRequest{AuctionID: "A3", Action: "resolve"})
	require.Error(err)
	require.Equal(faults.KindNoValidBids, faults.KindOf(err))

	var fe *faults.Error
	require.ErrorAs(err, &fe)
	require.Equal("A3", fe.AuctionID)
	require.Equal(4, fe.BidCount)
}

func TestErrorWithoutBody(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 0).GetAuction(context.Background(), "A1")
	require.Equal(faults.KindUnauthorized, faults.KindOf(err))
}

func TestTransportAndDecodeFailures(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	_, err := NewClient(srv.URL, "", 0).SubmitBid(context.Background(), BidRequest{AuctionID: "A1"})
	require.Equal(faults.KindDecode, faults.KindOf(err))

	srv.Close()
	_, err = NewClient(srv.URL, "", 0).SubmitBid(context.Background(), BidRequest{AuctionID: "A1"})
	require.Equal(faults.KindTransport, faults.KindOf(err))
	require.True(faults.Retriable(err))
}

func TestVerifyDetectsMismatch(t *testing.T) {
	cases := map[string]func(r *ResolveResponse){
		"winner":     func(r *ResolveResponse) { r.Winner = "0x00000000000000000000000000000000000a11ce" },
		"amount":     func(r *ResolveResponse) { r.Amount = "1500.000001" },
		"minor":      func(r *ResolveResponse) { r.AmountMinor = "1" },
		"contractId": func(r *ResolveResponse) { r.ContractAuctionID = "8" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := resolved(t)
			mutate(&r)
			_, err := r.Verify()
			require.ErrorIs(t, err, ErrReportMismatch)
		})
	}

	r := resolved(t)
	r.Report = "0x1234"
	_, err := r.Verify()
	require.ErrorIs(t, err, settlement.ErrReportSize)
}

func TestBearerToken(t *testing.T) {
	require := require.New(t)
	require.Equal("abc", BearerToken("Bearer abc"))
	require.Equal("abc", BearerToken("BEARER  abc "))
	require.Empty(BearerToken("Bearer "))
	require.Empty(BearerToken("Basic abc"))
	require.Empty(BearerToken(""))
}
