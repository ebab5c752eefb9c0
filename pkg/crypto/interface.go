// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"context"
	"errors"
)

var (
	// ErrInvalidKeySize indicates the key size is incorrect
	ErrInvalidKeySize = errors.New("invalid key size")
	// ErrInvalidCiphertext indicates the ciphertext is malformed
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrDecryptionFailed indicates authentication or unwrapping failed
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrNoKey indicates no private key was configured for the chosen scheme
	ErrNoKey = errors.New("no decryption key configured")
	// ErrUnknownScheme indicates an unsupported decryption scheme name
	ErrUnknownScheme = errors.New("unknown decryption scheme")
)

// Scheme names accepted by NewDecrypter.
const (
	SchemeHPKE    = "hpke"
	SchemeRSAOAEP = "rsa-oaep"
)

// Decrypter opens sealed bid payloads. Implementations are selected once at
// startup and hold the resolver's private key.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Scheme() string
}

// Sealer is the bidder-side counterpart of a Decrypter.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Scheme() string
}

// HPKE provides Hybrid Public Key Encryption operations
type HPKE interface {
	// GenerateKeyPair generates an X25519 key pair
	GenerateKeyPair() (publicKey, privateKey []byte, err error)
	// Encapsulate generates ephemeral key and shared secret
	Encapsulate(recipientPublicKey []byte) (*Encapsulation, error)
	// Decapsulate recovers shared secret from encapsulated key
	Decapsulate(encapsulatedKey, privateKey []byte) ([]byte, error)
}

// Encapsulation contains the encapsulated key and shared secret
type Encapsulation struct {
	EncapsulatedKey []byte
	SharedSecret    []byte
}
