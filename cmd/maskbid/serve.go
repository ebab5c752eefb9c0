// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"

	"github.com/maskbid/maskbid/pkg/storage"
)

// runAll runs every task until ctx ends or one of them fails, then waits
// for the rest to stop.
func runAll(ctx context.Context, tasks ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(tasks))
	for _, task := range tasks {
		go func() { errCh <- task(ctx) }()
	}

	var first error
	for range tasks {
		if err := <-errCh; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

// storageCheck reads an auction id that is expected to be absent.
func storageCheck(store *storage.Storage) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := store.GetAuction(ctx, "healthz")
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
}
