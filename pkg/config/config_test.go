// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}
}

func TestLoadFileOverDefaults(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "maskbid.yaml")
	require.NoError(os.WriteFile(path, []byte(`
log:
  level: debug
storage:
  type: memory
solver:
  decrypt_attempts: 3
  key:
    scheme: rsa-oaep
    key_file: /etc/maskbid/bid.pem
chain:
  rpc_url: http://localhost:8545
  auction_house: "0x00000000000000000000000000000000000000a1"
  poll_interval: 3s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(err)
	require.Equal("debug", cfg.Log.Level)
	require.Equal("memory", cfg.Storage.Type)
	require.Equal(3, cfg.Solver.DecryptAttempts)
	require.Equal("rsa-oaep", cfg.Solver.Key.Scheme)
	require.Equal("/etc/maskbid/bid.pem", cfg.Solver.Key.KeyFile)
	require.Equal(3*time.Second, cfg.Chain.PollInterval)
	// Untouched defaults survive.
	require.Equal(":8080", cfg.API.Listen)
	require.Equal(uint64(2), cfg.Chain.Confirmations)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(err)
}

func TestSecretsComeOnlyFromEnv(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "maskbid.yaml")
	require.NoError(os.WriteFile(path, []byte(`
solver:
  token: from-file
  key:
    key: deadbeef
`), 0o600))

	cfg, err := Load(path)
	require.NoError(err)
	require.Empty(cfg.Solver.Token)
	require.Empty(cfg.Solver.Key.Key)

	require.NoError(cfg.applyEnv(env(map[string]string{
		EnvSolverToken: "tok",
		EnvBidKey:      "abcd",
		EnvSupabaseKey: "service",
		EnvReporterKey: "0x01",
	})))
	require.Equal("tok", cfg.Solver.Token)
	require.Equal("abcd", cfg.Solver.Key.Key)
	require.Equal("service", cfg.Storage.SupabaseKey)
	require.Equal("0x01", cfg.Chain.ReporterKey)
}

func TestEnvOverrides(t *testing.T) {
	require := require.New(t)

	cfg := Default()
	require.NoError(cfg.applyEnv(env(map[string]string{
		"MASKBID_STORAGE_TYPE":               "supabase",
		"MASKBID_SUPABASE_URL":               "https://x.supabase.co",
		"MASKBID_ALLOWED_ORIGINS":            "https://a.example, https://b.example,",
		"MASKBID_ALLOW_SENTINEL_CONTRACT_ID": "true",
		"MASKBID_CHAIN_ID":                   "11155111",
	})))
	require.Equal("supabase", cfg.Storage.Type)
	require.Equal([]string{"https://a.example", "https://b.example"}, cfg.API.AllowedOrigins)
	require.True(cfg.Solver.AllowSentinelContractID)
	require.Equal(int64(11155111), cfg.Chain.ChainID)

	err := cfg.applyEnv(env(map[string]string{"MASKBID_CHAIN_ID": "sepolia"}))
	require.ErrorIs(err, ErrInvalidConfig)
}

func TestValidateSolver(t *testing.T) {
	require := require.New(t)

	cfg := Default()
	err := cfg.ValidateSolver()
	require.ErrorIs(err, ErrInvalidConfig)
	require.Contains(err.Error(), EnvSolverToken)
	require.Contains(err.Error(), EnvBidKey)

	cfg.Solver.Token = "tok"
	cfg.Solver.Key.Key = "00"
	require.NoError(cfg.ValidateSolver())

	cfg.Storage.Type = "supabase"
	require.ErrorIs(cfg.ValidateSolver(), ErrInvalidConfig)
	cfg.Storage.SupabaseURL = "https://x.supabase.co"
	cfg.Storage.SupabaseKey = "k"
	require.NoError(cfg.ValidateSolver())
}

func TestValidateRelay(t *testing.T) {
	require := require.New(t)

	cfg := Default()
	require.ErrorIs(cfg.ValidateRelay(), ErrInvalidConfig)

	cfg.Chain.RPCURL = "http://localhost:8545"
	cfg.Chain.AuctionHouse = "0x00000000000000000000000000000000000000a1"
	require.NoError(cfg.ValidateRelay())

	cfg.Chain.SubmitReports = true
	err := cfg.ValidateRelay()
	require.ErrorIs(err, ErrInvalidConfig)
	require.Contains(err.Error(), EnvReporterKey)

	cfg.Chain.ReporterKey = "key"
	cfg.Chain.ReportReceiver = "0x00000000000000000000000000000000000000a2"
	cfg.Chain.ChainID = 1
	require.NoError(cfg.ValidateRelay())
}
