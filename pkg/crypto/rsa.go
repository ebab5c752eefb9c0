// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
)

// RSA hybrid payloads: len(wrappedKey) as uint16 || RSA-OAEP(SHA-256) wrapped
// AES-256 key || nonce(12) || AES-GCM ciphertext+tag.

// RSASealer wraps a fresh AES key for the resolver's RSA public key.
type RSASealer struct {
	pub *rsa.PublicKey
}

// NewRSASealer creates a sealer for pub.
func NewRSASealer(pub *rsa.PublicKey) *RSASealer {
	return &RSASealer{pub: pub}
}

func (s *RSASealer) Scheme() string { return SchemeRSAOAEP }

func (s *RSASealer) Seal(plaintext []byte) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, s.pub, key, bidAAD)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 2, 2+len(wrapped)+len(nonce)+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint16(out, uint16(len(wrapped)))
	out = append(out, wrapped...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, bidAAD), nil
}

// RSADecrypter opens payloads produced by RSASealer.
type RSADecrypter struct {
	priv *rsa.PrivateKey
}

// NewRSADecrypter creates a decrypter holding priv.
func NewRSADecrypter(priv *rsa.PrivateKey) (*RSADecrypter, error) {
	if priv == nil {
		return nil, ErrNoKey
	}
	if priv.N.BitLen() < 2048 {
		return nil, fmt.Errorf("%w: rsa modulus %d bits", ErrInvalidKeySize, priv.N.BitLen())
	}
	return &RSADecrypter{priv: priv}, nil
}

func (d *RSADecrypter) Scheme() string { return SchemeRSAOAEP }

func (d *RSADecrypter) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ciphertext) < 2 {
		return nil, ErrInvalidCiphertext
	}
	n := int(binary.BigEndian.Uint16(ciphertext))
	rest := ciphertext[2:]
	if n == 0 || len(rest) < n+12 {
		return nil, ErrInvalidCiphertext
	}
	key, err := rsa.DecryptOAEP(sha256.New(), nil, d.priv, rest[:n], bidAAD)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	body := rest[n:]
	plaintext, err := gcm.Open(nil, body[:gcm.NonceSize()], body[gcm.NonceSize():], bidAAD)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// ParseRSAPrivateKeyPEM accepts PKCS#1 or PKCS#8 encoded keys.
func ParseRSAPrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse rsa private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("PEM key is not an RSA private key")
	}
	return key, nil
}

// EncodeRSAPrivateKeyPEM renders priv as PKCS#8 PEM.
func EncodeRSAPrivateKeyPEM(priv *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// EncodeRSAPublicKeyPEM renders pub as PKIX PEM for distribution to bidders.
func EncodeRSAPublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
