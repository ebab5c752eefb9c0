// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client talks to the MaskBid HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maskbid/maskbid/pkg/faults"
)

const maxResponseBytes = 1 << 20

// Client is the MaskBid API client. The token is only sent to the
// resolution endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new client. A zero timeout uses 30s.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively; anything else yields "".
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Resolve asks the solver to settle an auction. Non-2xx responses come back
// as *faults.Error carrying the server's taxonomy code.
func (c *Client) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResponse, error) {
	var out ResolveResponse
	if err := c.do(ctx, "client.resolve", http.MethodPost, "/api/v1/resolve", req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitBid stores a sealed bid.
func (c *Client) SubmitBid(ctx context.Context, req BidRequest) (*BidReceipt, error) {
	var out BidReceipt
	if err := c.do(ctx, "client.submit_bid", http.MethodPost, "/api/v1/bids", req, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAuction fetches the public view of an auction.
func (c *Client) GetAuction(ctx context.Context, auctionID string) (*AuctionView, error) {
	var out AuctionView
	path := "/api/v1/auctions/" + url.PathEscape(auctionID)
	if err := c.do(ctx, "client.get_auction", http.MethodGet, path, nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, auth bool, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return faults.Wrap(faults.KindBadRequest, op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return faults.Wrap(faults.KindMisconfigured, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return faults.Wrap(faults.KindTransport, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return faults.Wrap(faults.KindTransport, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(op, resp, data)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return faults.Wrap(faults.KindDecode, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func responseError(op string, resp *http.Response, data []byte) error {
	var body ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		kind := faults.KindTransport
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			kind = faults.KindUnauthorized
		case http.StatusNotFound:
			kind = faults.KindNotFound
		case http.StatusBadRequest:
			kind = faults.KindBadRequest
		}
		return faults.Wrap(kind, op, fmt.Errorf("%s", resp.Status))
	}
	return &faults.Error{
		Kind:      faults.Kind(body.Code),
		Op:        op,
		AuctionID: body.AuctionID,
		BidCount:  body.TotalBids,
		Err:       fmt.Errorf("%s: %s", resp.Status, body.Error),
	}
}
