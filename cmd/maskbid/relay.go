// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/maskbid/maskbid/pkg/api"
	"github.com/maskbid/maskbid/pkg/chain"
	"github.com/maskbid/maskbid/pkg/client"
	"github.com/maskbid/maskbid/pkg/config"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/metric"
	"github.com/maskbid/maskbid/pkg/relay"
	"github.com/maskbid/maskbid/pkg/storage"
	"github.com/maskbid/maskbid/pkg/syncer"
)

func newRelayCmd(g *globalFlags) *cobra.Command {
	var (
		rpcURL     string
		startBlock uint64
		opsListen  string
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Follow contract events into the store and deliver reports on-chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			flags := cmd.Flags()
			if flags.Changed("rpc-url") {
				cfg.Chain.RPCURL = rpcURL
			}
			if flags.Changed("start-block") {
				cfg.Chain.StartBlock = startBlock
			}
			if flags.Changed("ops-listen") {
				cfg.API.OpsListen = opsListen
			}
			if err := cfg.ValidateRelay(); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			return runRelay(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "JSON-RPC endpoint")
	cmd.Flags().Uint64Var(&startBlock, "start-block", 0, "First block to read")
	cmd.Flags().StringVar(&opsListen, "ops-listen", "", "Health, metrics and trigger listen address")
	return cmd
}

func runRelay(ctx context.Context, cfg config.Config, logger log.Logger) error {
	metrics, err := metric.NewMetrics()
	if err != nil {
		return err
	}
	store, err := storage.NewStorage(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rpc, err := chain.Dial(ctx, cfg.Chain.RPCURL, logger)
	if err != nil {
		return err
	}
	defer rpc.Close()

	caps := &relay.Capabilities{Log: logger, Chain: rpc}
	if cfg.Chain.SubmitReports {
		if caps.Reports, err = reportWriter(ctx, cfg.Chain, rpc, logger); err != nil {
			return err
		}
	} else {
		logger.Warn("report submission disabled; resolutions are logged only")
	}
	if cfg.Relay.SolverURL != "" && cfg.Solver.Token != "" {
		caps.Resolver = client.NewClient(cfg.Relay.SolverURL, cfg.Solver.Token, cfg.Chain.ResolverTimeout)
	}

	sync := syncer.New(store, logger, metrics)
	resolution := relay.NewResolutionWorkflow(metrics)

	var sources []relay.Source
	if cfg.Chain.AssetRegistry != "" {
		addr, err := ids.ParseAddress(cfg.Chain.AssetRegistry)
		if err != nil {
			return fmt.Errorf("chain.asset_registry: %w", err)
		}
		w := relay.NewAssetWorkflow(sync)
		sources = append(sources, relay.Source{Name: relay.WorkflowAsset, Address: addr, Topics: w.Topics(), Handler: w.Handle})
	}
	if cfg.Chain.AuctionHouse != "" {
		addr, err := ids.ParseAddress(cfg.Chain.AuctionHouse)
		if err != nil {
			return fmt.Errorf("chain.auction_house: %w", err)
		}
		w := relay.NewAuctionWorkflow(sync)
		if cfg.Chain.ResolveOnEnded {
			w.ResolveOnEnded(store, resolution)
		}
		sources = append(sources, relay.Source{Name: relay.WorkflowAuction, Address: addr, Topics: w.Topics(), Handler: w.Handle})
	}

	poller := relay.NewPoller(relay.PollerConfig{
		StartBlock:    cfg.Chain.StartBlock,
		Confirmations: cfg.Chain.Confirmations,
		MaxBlockRange: cfg.Chain.MaxBlockRange,
		Interval:      cfg.Chain.PollInterval,
	}, caps, metrics, sources...)

	ops := api.NewOpsRouter(metrics, logger, map[string]api.HealthCheck{
		"storage": storageCheck(store),
		"chain": func(ctx context.Context) error {
			_, err := rpc.BlockNumber(ctx)
			return err
		},
	})
	if cfg.Solver.Token != "" {
		ops.Handle("/trigger/resolve", relay.HTTPTrigger(resolution.Handle, caps, cfg.Solver.Token)).Methods(http.MethodPost)
	}

	return runAll(ctx,
		poller.Run,
		func(ctx context.Context) error { return api.Serve(ctx, cfg.API.OpsListen, ops, logger) },
	)
}

func reportWriter(ctx context.Context, cfg config.ChainConfig, rpc *chain.Client, logger log.Logger) (*chain.ReportWriter, error) {
	receiver, err := ids.ParseAddress(cfg.ReportReceiver)
	if err != nil {
		return nil, fmt.Errorf("chain.report_receiver: %w", err)
	}
	remote, err := rpc.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if remote.Cmp(big.NewInt(cfg.ChainID)) != 0 {
		return nil, faults.New(faults.KindMisconfigured, "relay.chain_id",
			fmt.Sprintf("configured chain id %d, endpoint reports %s", cfg.ChainID, remote))
	}
	return chain.NewReportWriter(rpc, chain.ReportWriterConfig{
		Receiver:    receiver,
		ChainID:     remote,
		ReporterKey: cfg.ReporterKey,
		GasLimit:    cfg.GasLimit,
	}, logger)
}
