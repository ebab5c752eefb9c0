// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crypto provides sealed-bid encryption and the resolver's decryption
// strategies.
package crypto

import (
	"context"
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// hpkeInfo domain-separates derived keys; bidAAD binds ciphertexts to the
// sealed-bid context.
var (
	hpkeInfo = []byte("maskbid-hpke-v1")
	bidAAD   = []byte("maskbid-sealed-bid-v1")
)

// HPKEImpl implements the X25519 / HKDF / ChaCha20-Poly1305 suite.
type HPKEImpl struct {
	suite HPKESuite
}

// HPKESuite defines the cryptographic suite for HPKE
type HPKESuite struct {
	KEM  string // Key Encapsulation Mechanism
	KDF  string // Key Derivation Function
	AEAD string // Authenticated Encryption with Associated Data
}

// DefaultSuite returns the default HPKE suite (X25519-HKDF-SHA3-ChaCha20Poly1305)
func DefaultSuite() HPKESuite {
	return HPKESuite{
		KEM:  "X25519",
		KDF:  "HKDF-SHA3-256",
		AEAD: "ChaCha20Poly1305",
	}
}

// NewHPKEImpl creates a new HPKE instance
func NewHPKEImpl() *HPKEImpl {
	return &HPKEImpl{
		suite: DefaultSuite(),
	}
}

// Suite reports the algorithms in use.
func (h *HPKEImpl) Suite() HPKESuite {
	return h.suite
}

// GenerateKeyPair generates an X25519 key pair
func (h *HPKEImpl) GenerateKeyPair() (publicKey, privateKey []byte, err error) {
	privateKey = make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(privateKey); err != nil {
		return nil, nil, err
	}

	publicKey, err = curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}

	return publicKey, privateKey, nil
}

// PublicKey derives the X25519 public key for privateKey.
func (h *HPKEImpl) PublicKey(privateKey []byte) ([]byte, error) {
	if len(privateKey) != curve25519.ScalarSize {
		return nil, ErrInvalidKeySize
	}
	return curve25519.X25519(privateKey, curve25519.Basepoint)
}

// Encapsulate generates an ephemeral key pair and shared secret
func (h *HPKEImpl) Encapsulate(recipientPublicKey []byte) (*Encapsulation, error) {
	if len(recipientPublicKey) != curve25519.PointSize {
		return nil, ErrInvalidKeySize
	}

	ephemeralPublic, ephemeralPrivate, err := h.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	sharedSecret, err := curve25519.X25519(ephemeralPrivate, recipientPublicKey)
	if err != nil {
		return nil, err
	}

	derivedKey, err := deriveKey(sharedSecret)
	if err != nil {
		return nil, err
	}

	return &Encapsulation{
		EncapsulatedKey: ephemeralPublic,
		SharedSecret:    derivedKey,
	}, nil
}

// Decapsulate recovers the shared secret from encapsulated key
func (h *HPKEImpl) Decapsulate(encapsulatedKey, privateKey []byte) ([]byte, error) {
	if len(encapsulatedKey) != curve25519.PointSize || len(privateKey) != curve25519.ScalarSize {
		return nil, ErrInvalidKeySize
	}

	sharedSecret, err := curve25519.X25519(privateKey, encapsulatedKey)
	if err != nil {
		return nil, err
	}

	return deriveKey(sharedSecret)
}

func deriveKey(sharedSecret []byte) ([]byte, error) {
	kdf := hkdf.New(sha3.New256, sharedSecret, nil, hpkeInfo)
	derivedKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := kdf.Read(derivedKey); err != nil {
		return nil, err
	}
	return derivedKey, nil
}

// SealSimple encrypts and authenticates plaintext for a single recipient
func (h *HPKEImpl) SealSimple(sharedSecret, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(sharedSecret[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// OpenSimple decrypts and verifies ciphertext
func (h *HPKEImpl) OpenSimple(sharedSecret, ciphertext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(sharedSecret[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	nonce := ciphertext[:aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, ciphertext[aead.NonceSize():], aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// HPKESealer seals bids for the resolver's X25519 public key. The wire format
// is encapsulatedKey(32) || nonce(12) || ciphertext+tag.
type HPKESealer struct {
	hpke      *HPKEImpl
	recipient []byte
}

// NewHPKESealer creates a sealer for recipientPublicKey.
func NewHPKESealer(recipientPublicKey []byte) (*HPKESealer, error) {
	if len(recipientPublicKey) != curve25519.PointSize {
		return nil, ErrInvalidKeySize
	}
	return &HPKESealer{hpke: NewHPKEImpl(), recipient: recipientPublicKey}, nil
}

func (s *HPKESealer) Scheme() string { return SchemeHPKE }

func (s *HPKESealer) Seal(plaintext []byte) ([]byte, error) {
	encap, err := s.hpke.Encapsulate(s.recipient)
	if err != nil {
		return nil, err
	}
	ct, err := s.hpke.SealSimple(encap.SharedSecret, plaintext, bidAAD)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(encap.EncapsulatedKey)+len(ct))
	out = append(out, encap.EncapsulatedKey...)
	return append(out, ct...), nil
}

// HPKEDecrypter opens payloads produced by HPKESealer.
type HPKEDecrypter struct {
	hpke       *HPKEImpl
	privateKey []byte
}

// NewHPKEDecrypter creates a decrypter holding privateKey.
func NewHPKEDecrypter(privateKey []byte) (*HPKEDecrypter, error) {
	if len(privateKey) == 0 {
		return nil, ErrNoKey
	}
	if len(privateKey) != curve25519.ScalarSize {
		return nil, ErrInvalidKeySize
	}
	key := make([]byte, len(privateKey))
	copy(key, privateKey)
	return &HPKEDecrypter{hpke: NewHPKEImpl(), privateKey: key}, nil
}

func (d *HPKEDecrypter) Scheme() string { return SchemeHPKE }

func (d *HPKEDecrypter) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ciphertext) <= curve25519.PointSize {
		return nil, ErrInvalidCiphertext
	}
	secret, err := d.hpke.Decapsulate(ciphertext[:curve25519.PointSize], d.privateKey)
	if err != nil {
		return nil, err
	}
	return d.hpke.OpenSimple(secret, ciphertext[curve25519.PointSize:], bidAAD)
}
