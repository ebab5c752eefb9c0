// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write loses: the record
	// already exists, its version moved, or its state forbids the change.
	ErrConflict = errors.New("conditional write conflict")
	// ErrNoChange lets a mutator report that the record is already in the
	// wanted state; the update returns the current record without writing.
	ErrNoChange = errors.New("no change")
)

// Table names.
const (
	TableAssets   = "assets"
	TableAuctions = "auctions"
	TableBids     = "bids"
)

// Record is one stored JSON document with its optimistic-concurrency version.
type Record struct {
	Key     string
	Version int64
	Data    []byte
}

// Filter selects records whose top-level JSON fields equal the given values.
type Filter map[string]string

// Backend is a single-record-atomic document store. Every write touches one
// record; nothing spans records.
type Backend interface {
	// Get returns ErrNotFound for an absent key.
	Get(ctx context.Context, table, key string) (Record, error)
	// Insert creates the record at version 1, or returns ErrConflict.
	Insert(ctx context.Context, table, key string, data []byte) (Record, error)
	// Swap replaces the record only if it is still at version.
	Swap(ctx context.Context, table, key string, version int64, data []byte) (Record, error)
	// Find returns matching records ordered by key.
	Find(ctx context.Context, table string, where Filter) ([]Record, error)
	Close() error
}

// matches evaluates a Filter against a JSON document.
func matches(data []byte, where Filter) bool {
	if len(where) == 0 {
		return true
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return false
	}
	for field, want := range where {
		v, ok := doc[field]
		if !ok || v == nil {
			return false
		}
		if fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}
