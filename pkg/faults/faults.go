// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package faults is the error taxonomy shared by the synchronizer, the solver
// and the HTTP surfaces. Every failure that leaves a component carries a Kind.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a taxonomy tag.
type Kind string

const (
	KindUnknown       Kind = ""
	KindBadRequest    Kind = "BadRequest"
	KindUnauthorized  Kind = "Unauthorized"
	KindMisconfigured Kind = "Misconfigured"
	KindNotFound      Kind = "NotFound"
	KindNoBids        Kind = "NoBids"
	KindNoValidBids   Kind = "NoValidBids"
	KindDecode        Kind = "DecodeError"
	KindTransport     Kind = "TransportError"
	KindConflict      Kind = "Conflict"
	KindUnmapped      Kind = "Unmapped"
)

// Error is a tagged failure with enough context to diagnose it without
// carrying bid contents or secrets.
type Error struct {
	Kind      Kind
	Op        string
	AuctionID string
	BidCount  int
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.AuctionID != "" {
		msg += fmt.Sprintf(" (auction %s, %d bids)", e.AuctionID, e.BidCount)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a tagged error from a message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap tags err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// ForAuction returns a copy of e annotated with auction context.
func (e *Error) ForAuction(auctionID string, bidCount int) *Error {
	cp := *e
	cp.AuctionID = auctionID
	cp.BidCount = bidCount
	return &cp
}

// KindOf extracts the outermost taxonomy tag from err.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retriable reports whether redelivering the trigger may succeed later.
func Retriable(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindTransport, KindConflict:
		return true
	}
	return false
}

// HTTPStatus maps a taxonomy tag onto the resolution endpoint's status codes.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindBadRequest, KindNoBids, KindNoValidBids:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindUnmapped:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
