// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"cmp"
	"context"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/metric"
)

// Source routes logs from one contract to a handler.
type Source struct {
	Name    string
	Address common.Address
	Topics  []common.Hash
	Handler LogHandler
}

// PollerConfig bounds how far behind the head the poller reads and how
// many blocks one query spans.
type PollerConfig struct {
	StartBlock    uint64
	Confirmations uint64
	MaxBlockRange uint64
	Interval      time.Duration
}

// Poller is a minimal log trigger runtime. The cursor lives in memory; on
// restart the synchronizer's idempotency absorbs the replay from StartBlock.
type Poller struct {
	cfg     PollerConfig
	caps    *Capabilities
	sources map[common.Address]Source
	metrics *metric.Metrics

	mu     sync.Mutex
	cursor uint64
}

func NewPoller(cfg PollerConfig, caps *Capabilities, metrics *metric.Metrics, sources ...Source) *Poller {
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = 2_000
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 12 * time.Second
	}
	bySource := make(map[common.Address]Source, len(sources))
	for _, s := range sources {
		bySource[s.Address] = s
	}
	return &Poller{cfg: cfg, caps: caps, sources: bySource, metrics: metrics, cursor: cfg.StartBlock}
}

// Cursor is the next block to read.
func (p *Poller) Cursor() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.caps.Log.Info("poller started",
		zap.Uint64("from", p.Cursor()),
		zap.Int("sources", len(p.sources)),
		zap.Duration("interval", p.cfg.Interval))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		for {
			more, err := p.Poll(ctx)
			if err != nil {
				p.caps.Log.Warn("poll failed, retrying next tick", log.Error(err), zap.Uint64("cursor", p.Cursor()))
				break
			}
			if !more {
				break
			}
		}

		select {
		case <-ctx.Done():
			p.caps.Log.Info("poller stopped", zap.Uint64("cursor", p.Cursor()))
			return nil
		case <-ticker.C:
		}
	}
}

// Poll reads one block range and dispatches its logs in chain order. It
// reports whether confirmed blocks remain beyond the range it read. A
// retriable handler failure stops at that log's block so the next poll
// redelivers it; other failures are logged and skipped.
func (p *Poller) Poll(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	head, err := p.caps.Chain.BlockNumber(ctx)
	if err != nil {
		return false, err
	}
	if head < p.cfg.Confirmations {
		return false, nil
	}
	safe := head - p.cfg.Confirmations
	from := p.cursor
	if from > safe {
		return false, nil
	}
	to := min(from+p.cfg.MaxBlockRange-1, safe)

	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: make([]common.Address, 0, len(p.sources)),
	}
	var topics []common.Hash
	for addr, s := range p.sources {
		q.Addresses = append(q.Addresses, addr)
		topics = append(topics, s.Topics...)
	}
	if len(topics) > 0 {
		q.Topics = [][]common.Hash{topics}
	}

	logs, err := p.caps.Chain.FilterLogs(ctx, q)
	if err != nil {
		return false, err
	}
	slices.SortFunc(logs, func(a, b types.Log) int {
		return cmp.Or(cmp.Compare(a.BlockNumber, b.BlockNumber), cmp.Compare(a.Index, b.Index))
	})

	for _, l := range logs {
		if l.Removed {
			continue
		}
		src, ok := p.sources[l.Address]
		if !ok {
			continue
		}
		res, err := src.Handler(ctx, p.caps, l)
		if err == nil {
			p.caps.Log.Debug("log handled",
				log.String("source", src.Name),
				log.String("event", res.Event),
				log.String("outcome", string(res.Outcome)),
				zap.Uint64("block", l.BlockNumber))
			continue
		}
		if faults.Retriable(err) || ctx.Err() != nil {
			p.cursor = l.BlockNumber
			p.setHeight(l.BlockNumber)
			return false, err
		}
		p.caps.Log.Error("skipping log",
			log.String("source", src.Name),
			log.String("tx", l.TxHash.Hex()),
			zap.Uint("index", l.Index),
			log.Error(err))
	}

	p.cursor = to + 1
	p.setHeight(to + 1)
	return to < safe, nil
}

func (p *Poller) setHeight(next uint64) {
	if p.metrics != nil && next > 0 {
		p.metrics.PollerHeight.Set(float64(next - 1))
	}
}
