// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api serves the public HTTP surface: resolution, sealed-bid
// intake and auction views.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/metric"
	"github.com/maskbid/maskbid/pkg/solver"
	"github.com/maskbid/maskbid/pkg/storage"
)

const maxBodyBytes = 1 << 20

// Resolver settles auctions.
type Resolver interface {
	Resolve(ctx context.Context, req solver.Request) (*solver.Result, error)
}

// Store is what the public endpoints read and write.
type Store interface {
	SubmitBid(ctx context.Context, req storage.SubmitBidRequest) (*storage.SealedBid, error)
	GetAuction(ctx context.Context, id string) (*storage.Auction, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]*storage.SealedBid, error)
}

var (
	_ Resolver = (*solver.Solver)(nil)
	_ Store    = (*storage.Storage)(nil)
)

// Config controls the public server.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Release        bool
}

// Server is the public API.
type Server struct {
	cfg      Config
	resolver Resolver
	store    Store
	log      log.Logger
	metrics  *metric.Metrics
	router   *gin.Engine
}

// NewServer wires routes and middleware.
func NewServer(cfg Config, resolver Resolver, store Store, logger log.Logger, metrics *metric.Metrics) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg, resolver: resolver, store: store, log: logger, metrics: metrics}
	s.router = s.setupRouter()
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), s.observe())

	config := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) == 0 || (len(s.cfg.AllowedOrigins) == 1 && s.cfg.AllowedOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = s.cfg.AllowedOrigins
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader}
	config.ExposeHeaders = []string{requestIDHeader}
	router.Use(cors.New(config))

	api := router.Group("/api/v1")
	{
		api.POST("/resolve", s.handleResolve)
		api.POST("/bids", s.handleSubmitBid)
		api.GET("/auctions/:id", s.handleGetAuction)
	}
	return router
}

// Serve runs an HTTP server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, addr string, handler http.Handler, logger log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", log.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("http server stopped", log.String("addr", addr))
	return nil
}
