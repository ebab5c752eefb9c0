// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/maskbid/maskbid/pkg/crypto/hashing"
)

// KeyConfig names the decryption scheme and where its private key lives.
// Key takes precedence over KeyFile.
type KeyConfig struct {
	Scheme  string `yaml:"scheme"`
	Key     string `yaml:"-"`
	KeyFile string `yaml:"key_file"`
}

// NewDecrypter selects the production decryption strategy. There is no
// plaintext fallback: a missing key is an error.
func NewDecrypter(cfg KeyConfig) (Decrypter, error) {
	material, err := loadKeyMaterial(cfg)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Scheme) {
	case SchemeHPKE, "":
		key, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(material)), "0x"))
		if err != nil {
			return nil, fmt.Errorf("hpke key: %w", err)
		}
		return NewHPKEDecrypter(key)
	case SchemeRSAOAEP:
		priv, err := ParseRSAPrivateKeyPEM(material)
		if err != nil {
			return nil, err
		}
		return NewRSADecrypter(priv)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, cfg.Scheme)
	}
}

func loadKeyMaterial(cfg KeyConfig) ([]byte, error) {
	if cfg.Key != "" {
		return []byte(cfg.Key), nil
	}
	if cfg.KeyFile == "" {
		return nil, ErrNoKey
	}
	data, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoKey
	}
	return data, nil
}

// GenerateHPKEKeyHex returns a fresh X25519 key pair hex encoded, for keygen.
func GenerateHPKEKeyHex() (publicKey, privateKey string, err error) {
	pub, priv, err := NewHPKEImpl().GenerateKeyPair()
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(pub), hex.EncodeToString(priv), nil
}

// CreateCommitment is the sealed-bid commitment hash in 0x-hex form.
func CreateCommitment(auctionID string, bidder common.Address, payload []byte) string {
	return hashing.Commitment(auctionID, bidder, payload).Hex()
}

// TokenEqual compares a presented secret with the configured one through
// their digests, so neither the content nor the length of want leaks
// through timing. An empty want never matches.
func TokenEqual(want, got string) bool {
	if want == "" {
		return false
	}
	w := hashing.Keccak256([]byte(want))
	g := hashing.Keccak256([]byte(got))
	return subtle.ConstantTimeCompare(w[:], g[:]) == 1
}
