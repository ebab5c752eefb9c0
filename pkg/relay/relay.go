// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relay runs the trigger workflows: contract logs flow into the
// synchronizer, HTTP resolution triggers flow through the solver and back
// on-chain as reports.
package relay

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/maskbid/maskbid/pkg/chain"
	"github.com/maskbid/maskbid/pkg/client"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/syncer"
)

// ReportSubmitter delivers an encoded report on-chain.
type ReportSubmitter interface {
	WriteReport(ctx context.Context, report []byte) (common.Hash, error)
}

// Resolver reaches the solver endpoint.
type Resolver interface {
	Resolve(ctx context.Context, req client.ResolveRequest) (*client.ResolveResponse, error)
	GetAuction(ctx context.Context, auctionID string) (*client.AuctionView, error)
}

var (
	_ ReportSubmitter = (*chain.ReportWriter)(nil)
	_ Resolver        = (*client.Client)(nil)
)

// Capabilities are injected into every invocation. Reports and Resolver may
// be nil when the runtime does not provide them.
type Capabilities struct {
	Log      log.Logger
	Chain    chain.Reader
	Reports  ReportSubmitter
	Resolver Resolver
}

// Result describes what one invocation did.
type Result struct {
	Workflow string
	Event    string
	Key      string
	Outcome  syncer.Outcome

	Resolution *client.ResolveResponse
	TxHash     common.Hash
	Submitted  bool
}

// LogHandler handles one contract log.
type LogHandler func(ctx context.Context, caps *Capabilities, l types.Log) (*Result, error)

// HTTPHandler handles one HTTP trigger payload.
type HTTPHandler func(ctx context.Context, caps *Capabilities, payload []byte) (*Result, error)
