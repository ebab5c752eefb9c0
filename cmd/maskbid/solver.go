// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/maskbid/maskbid/pkg/api"
	"github.com/maskbid/maskbid/pkg/crypto"
	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/metric"
	"github.com/maskbid/maskbid/pkg/solver"
	"github.com/maskbid/maskbid/pkg/storage"
)

func newSolverCmd(g *globalFlags) *cobra.Command {
	var listen, opsListen, storageType string

	cmd := &cobra.Command{
		Use:   "solver",
		Short: "Serve the resolution endpoint and sealed-bid intake",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.API.Listen = listen
			}
			if flags.Changed("ops-listen") {
				cfg.API.OpsListen = opsListen
			}
			if flags.Changed("storage") {
				cfg.Storage.Type = storageType
			}
			if err := cfg.ValidateSolver(); err != nil {
				return err
			}

			metrics, err := metric.NewMetrics()
			if err != nil {
				return err
			}
			store, err := storage.NewStorage(cfg.Storage, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			decrypter, err := crypto.NewDecrypter(cfg.Solver.Key)
			if err != nil {
				return faults.Wrap(faults.KindMisconfigured, "solver.key", err)
			}
			logger.Info("bid decryption ready", log.String("scheme", decrypter.Scheme()))

			s := solver.New(solver.Config{
				Token:                   cfg.Solver.Token,
				DecryptAttempts:         cfg.Solver.DecryptAttempts,
				AllowSentinelContractID: cfg.Solver.AllowSentinelContractID,
			}, store, decrypter, logger, metrics)
			if cfg.Solver.AllowSentinelContractID {
				logger.Warn("unmapped auctions will resolve against contract auction id 0 and need manual reconciliation")
			}

			server := api.NewServer(api.Config{
				AllowedOrigins: cfg.API.AllowedOrigins,
				RequestTimeout: cfg.API.RequestTimeout,
				Release:        cfg.Log.Level != "debug",
			}, s, store, logger, metrics)
			ops := api.NewOpsRouter(metrics, logger, map[string]api.HealthCheck{
				"storage": storageCheck(store),
			})

			ctx, stop := signalContext()
			defer stop()
			return runAll(ctx,
				func(ctx context.Context) error { return api.Serve(ctx, cfg.API.Listen, server.Handler(), logger) },
				func(ctx context.Context) error { return api.Serve(ctx, cfg.API.OpsListen, ops, logger) },
			)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Public API listen address")
	cmd.Flags().StringVar(&opsListen, "ops-listen", "", "Health and metrics listen address")
	cmd.Flags().StringVar(&storageType, "storage", "", "Storage backend: badger, memory, supabase")
	return cmd
}
