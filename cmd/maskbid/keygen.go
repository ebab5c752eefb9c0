// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maskbid/maskbid/pkg/crypto"
)

const (
	publicKeyFile  = "bid_key.pub"
	privateKeyFile = "bid_key"
)

func newKeygenCmd() *cobra.Command {
	var (
		scheme string
		bits   int
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a bid encryption key pair",
		Long: `Generate the key pair bidders seal payloads to. The public half is
published to bidders; the private half is given to the solver through
MASKBID_BID_KEY or solver.key.key_file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := generateKeyPair(scheme, bits)
			if err != nil {
				return err
			}
			if outDir == "" {
				return printKeyPair(cmd.OutOrStdout(), scheme, pub, priv)
			}
			return writeKeyPair(cmd.OutOrStdout(), outDir, pub, priv)
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", crypto.SchemeHPKE, "Key scheme: hpke or rsa-oaep")
	cmd.Flags().IntVar(&bits, "bits", 3072, "RSA modulus size")
	cmd.Flags().StringVar(&outDir, "out", "", "Write key files into this directory instead of stdout")
	return cmd
}

func generateKeyPair(scheme string, bits int) (pub, priv []byte, err error) {
	switch scheme {
	case crypto.SchemeHPKE:
		pubHex, privHex, err := crypto.GenerateHPKEKeyHex()
		if err != nil {
			return nil, nil, err
		}
		return []byte(pubHex + "\n"), []byte(privHex + "\n"), nil
	case crypto.SchemeRSAOAEP:
		if bits < 2048 {
			return nil, nil, fmt.Errorf("rsa key size %d is below 2048", bits)
		}
		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, nil, err
		}
		if priv, err = crypto.EncodeRSAPrivateKeyPEM(key); err != nil {
			return nil, nil, err
		}
		if pub, err = crypto.EncodeRSAPublicKeyPEM(&key.PublicKey); err != nil {
			return nil, nil, err
		}
		return pub, priv, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", crypto.ErrUnknownScheme, scheme)
	}
}

func printKeyPair(w io.Writer, scheme string, pub, priv []byte) error {
	_, err := fmt.Fprintf(w, "scheme: %s\npublic:\n%s\nprivate:\n%s", scheme, pub, priv)
	return err
}

func writeKeyPair(w io.Writer, dir string, pub, priv []byte) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	privPath := filepath.Join(dir, privateKeyFile)
	pubPath := filepath.Join(dir, publicKeyFile)
	if err := os.WriteFile(privPath, priv, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "wrote %s and %s\n", pubPath, privPath)
	return err
}
