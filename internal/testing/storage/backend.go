// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage provides a store backend wrapper that counts writes and
// injects failures.
package storage

import (
	"context"
	"sync"

	"github.com/maskbid/maskbid/pkg/storage"
)

// Op names a backend operation for fault injection.
type Op string

const (
	OpGet    Op = "get"
	OpInsert Op = "insert"
	OpSwap   Op = "swap"
	OpFind   Op = "find"
)

// Backend wraps a storage.Backend, counting writes and failing operations
// on demand.
type Backend struct {
	inner storage.Backend

	mu      sync.Mutex
	inserts int
	swaps   int
	reads   int
	faults  map[Op]fault
}

type fault struct {
	err   error
	after int // successful calls to allow first
	table string
}

// Wrap returns a counting wrapper around inner.
func Wrap(inner storage.Backend) *Backend {
	return &Backend{inner: inner, faults: make(map[Op]fault)}
}

// NewMemory wraps a fresh in-memory backend.
func NewMemory() *Backend {
	return Wrap(storage.NewMemoryBackend())
}

// FailOn makes op return err after the given number of successful calls.
// An empty table matches every table.
func (b *Backend) FailOn(op Op, table string, after int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[op] = fault{err: err, after: after, table: table}
}

// Heal removes all injected faults.
func (b *Backend) Heal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults = make(map[Op]fault)
}

// Writes returns the number of successful inserts and swaps.
func (b *Backend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inserts + b.swaps
}

// Reads returns the number of gets and finds attempted.
func (b *Backend) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

// Reset zeroes the counters.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inserts, b.swaps, b.reads = 0, 0, 0
}

func (b *Backend) check(op Op, table string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.faults[op]
	if !ok || (f.table != "" && f.table != table) {
		return nil
	}
	if f.after > 0 {
		f.after--
		b.faults[op] = f
		return nil
	}
	return f.err
}

func (b *Backend) Get(ctx context.Context, table, key string) (storage.Record, error) {
	b.mu.Lock()
	b.reads++
	b.mu.Unlock()
	if err := b.check(OpGet, table); err != nil {
		return storage.Record{}, err
	}
	return b.inner.Get(ctx, table, key)
}

func (b *Backend) Insert(ctx context.Context, table, key string, data []byte) (storage.Record, error) {
	if err := b.check(OpInsert, table); err != nil {
		return storage.Record{}, err
	}
	rec, err := b.inner.Insert(ctx, table, key, data)
	if err == nil {
		b.mu.Lock()
		b.inserts++
		b.mu.Unlock()
	}
	return rec, err
}

func (b *Backend) Swap(ctx context.Context, table, key string, version int64, data []byte) (storage.Record, error) {
	if err := b.check(OpSwap, table); err != nil {
		return storage.Record{}, err
	}
	rec, err := b.inner.Swap(ctx, table, key, version, data)
	if err == nil {
		b.mu.Lock()
		b.swaps++
		b.mu.Unlock()
	}
	return rec, err
}

func (b *Backend) Find(ctx context.Context, table string, where storage.Filter) ([]storage.Record, error) {
	b.mu.Lock()
	b.reads++
	b.mu.Unlock()
	if err := b.check(OpFind, table); err != nil {
		return nil, err
	}
	return b.inner.Find(ctx, table, where)
}

func (b *Backend) Close() error { return b.inner.Close() }
