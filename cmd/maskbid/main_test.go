// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	teststorage "github.com/maskbid/maskbid/internal/testing/storage"
	"github.com/maskbid/maskbid/pkg/crypto"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReportEncodeDecode(t *testing.T) {
	require := require.New(t)

	hex, err := execute(t, "report", "encode",
		"--auction", "42",
		"--winner", "0x00000000000000000000000000000000000000b2",
		"--amount", "1500.25")
	require.NoError(err)
	hex = strings.TrimSpace(hex)
	require.True(strings.HasPrefix(hex, "0x"))
	require.Len(hex, 2+2*96)

	out, err := execute(t, "report", "decode", hex)
	require.NoError(err)

	var view reportView
	require.NoError(json.Unmarshal([]byte(out), &view))
	require.Equal("42", view.AuctionID)
	require.Equal("0x00000000000000000000000000000000000000b2", view.Winner)
	require.Equal("1500.25", view.WinningAmount)
	require.Equal("1500250000", view.AmountMinor)
}

func TestReportRejectsBadInput(t *testing.T) {
	require := require.New(t)

	_, err := execute(t, "report", "decode", "0x1234")
	require.Error(err)

	_, err = execute(t, "report", "encode", "--auction", "1", "--winner", "b2", "--amount", "1")
	require.ErrorContains(err, "--winner")

	_, err = execute(t, "report", "encode", "--auction", "1",
		"--winner", "0x00000000000000000000000000000000000000b2", "--amount", "0.0000001")
	require.ErrorContains(err, "--amount")
}

func TestKeygenHPKEKeyLoadsAsDecrypter(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	_, err := execute(t, "keygen", "--out", dir)
	require.NoError(err)

	priv, err := os.ReadFile(filepath.Join(dir, privateKeyFile))
	require.NoError(err)
	info, err := os.Stat(filepath.Join(dir, privateKeyFile))
	require.NoError(err)
	require.Equal(os.FileMode(0o600), info.Mode().Perm())

	dec, err := crypto.NewDecrypter(crypto.KeyConfig{
		Scheme:  crypto.SchemeHPKE,
		KeyFile: filepath.Join(dir, privateKeyFile),
	})
	require.NoError(err)
	require.Equal(crypto.SchemeHPKE, dec.Scheme())
	require.NotEmpty(strings.TrimSpace(string(priv)))
}

func TestKeygenRSARoundTrip(t *testing.T) {
	require := require.New(t)

	pub, priv, err := generateKeyPair(crypto.SchemeRSAOAEP, 2048)
	require.NoError(err)
	require.Contains(string(pub), "PUBLIC KEY")

	dec, err := crypto.NewDecrypter(crypto.KeyConfig{Scheme: crypto.SchemeRSAOAEP, Key: string(priv)})
	require.NoError(err)
	require.Equal(crypto.SchemeRSAOAEP, dec.Scheme())

	_, _, err = generateKeyPair(crypto.SchemeRSAOAEP, 1024)
	require.Error(err)
	_, _, err = generateKeyPair("plaintext", 0)
	require.ErrorIs(err, crypto.ErrUnknownScheme)
}

func TestRunAllStopsOnFirstError(t *testing.T) {
	require := require.New(t)
	boom := errors.New("boom")

	stopped := make(chan struct{})
	err := runAll(context.Background(),
		func(context.Context) error { return boom },
		func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		},
	)
	require.ErrorIs(err, boom)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sibling task was not cancelled")
	}
}

func TestStorageCheckTreatsMissAsHealthy(t *testing.T) {
	require := require.New(t)

	mem := teststorage.NewMemory()
	store := storage.New(mem, log.NoOp())
	require.NoError(storageCheck(store)(context.Background()))

	outage := errors.New("connection refused")
	mem.FailOn(teststorage.OpGet, storage.TableAuctions, 0, outage)
	require.ErrorIs(storageCheck(store)(context.Background()), outage)
}
