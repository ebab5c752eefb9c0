// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainlog builds raw contract logs for tests.
package chainlog

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// Build packs args, in declared input order, into a log for the named event.
func Build(catalog abi.ABI, name string, args ...any) (types.Log, error) {
	ev, ok := catalog.Events[name]
	if !ok {
		return types.Log{}, fmt.Errorf("event %q not in catalog", name)
	}
	if len(args) != len(ev.Inputs) {
		return types.Log{}, fmt.Errorf("%s: want %d args, got %d", name, len(ev.Inputs), len(args))
	}

	topics := []common.Hash{ev.ID}
	var data []any
	for i, in := range ev.Inputs {
		if !in.Indexed {
			data = append(data, args[i])
			continue
		}
		t, err := abi.MakeTopics([]any{args[i]})
		if err != nil {
			return types.Log{}, fmt.Errorf("%s.%s: %w", name, in.Name, err)
		}
		topics = append(topics, t[0][0])
	}

	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return types.Log{}, fmt.Errorf("%s: %w", name, err)
	}
	return types.Log{Topics: topics, Data: packed}, nil
}

// MustBuild is Build for tests.
func MustBuild(t testing.TB, catalog abi.ABI, name string, args ...any) types.Log {
	t.Helper()
	l, err := Build(catalog, name, args...)
	require.NoError(t, err)
	return l
}

// At places a log at a deterministic transaction and index.
func At(l types.Log, tx string, index uint, block uint64) types.Log {
	l.TxHash = crypto.Keccak256Hash([]byte(tx))
	l.Index = index
	l.BlockNumber = block
	return l
}
