// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashing

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// commitmentArgs is the tuple (string auctionId, address bidder, bytes payload).
var commitmentArgs = func() abi.Arguments {
	args := make(abi.Arguments, 0, 3)
	for _, name := range []string{"string", "address", "bytes"} {
		typ, err := abi.NewType(name, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}()

// Keccak256 computes the Ethereum Keccak-256 hash of the concatenated inputs.
func Keccak256(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

// Commitment binds a sealed bid to its auction and bidder:
// keccak256(abi.encode(auctionId, bidder, payload)). Every field is length
// delimited, and a contract can recompute the hash with the same call.
func Commitment(auctionID string, bidder common.Address, payload []byte) common.Hash {
	packed, err := commitmentArgs.Pack(auctionID, bidder, payload)
	if err != nil {
		// Only reachable if the Go types above stop matching the tuple.
		panic(err)
	}
	return Keccak256(packed)
}
