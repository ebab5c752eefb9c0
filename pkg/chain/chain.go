// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain reads contract logs and submits settlement reports.
package chain

import (
	"context"
	"math/big"
	"net/url"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
)

// Reader is the read side of the chain capability.
type Reader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// TxBackend is what the report writer needs to build and send a transaction.
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Client is an RPC-backed Reader and TxBackend. Every RPC failure is a
// TransportError.
type Client struct {
	eth *ethclient.Client
	log log.Logger
}

var (
	_ Reader    = (*Client)(nil)
	_ TxBackend = (*Client)(nil)
)

// Dial connects to an http(s) or ws(s) JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string, logger log.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, faults.Wrap(faults.KindTransport, "chain.dial", err)
	}
	logger.Info("connected to chain", log.String("rpc", endpointHost(rpcURL)))
	return &Client{eth: eth, log: logger}, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.eth.ChainID(ctx)
	return id, faults.Wrap(faults.KindTransport, "chain.chain_id", err)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	return n, faults.Wrap(faults.KindTransport, "chain.block_number", err)
}

func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.eth.FilterLogs(ctx, q)
	return logs, faults.Wrap(faults.KindTransport, "chain.filter_logs", err)
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	n, err := c.eth.PendingNonceAt(ctx, account)
	return n, faults.Wrap(faults.KindTransport, "chain.nonce", err)
}

func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	return tip, faults.Wrap(faults.KindTransport, "chain.gas_tip", err)
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	h, err := c.eth.HeaderByNumber(ctx, number)
	return h, faults.Wrap(faults.KindTransport, "chain.header", err)
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return faults.Wrap(faults.KindTransport, "chain.send", c.eth.SendTransaction(ctx, tx))
}

func (c *Client) Close() {
	c.eth.Close()
}

// endpointHost drops paths and queries, which often carry provider keys.
func endpointHost(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return log.Redact(rpcURL)
	}
	return u.Scheme + "://" + u.Host
}
