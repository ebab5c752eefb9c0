// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads process configuration once at startup. Secrets are
// read only from the environment and never from files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maskbid/maskbid/pkg/crypto"
	"github.com/maskbid/maskbid/pkg/log"
	"github.com/maskbid/maskbid/pkg/storage"
)

// Environment variables.
const (
	EnvPrefix      = "MASKBID_"
	EnvSolverToken = EnvPrefix + "SOLVER_TOKEN"
	EnvBidKey      = EnvPrefix + "BID_KEY"
	EnvSupabaseKey = EnvPrefix + "SUPABASE_KEY"
	EnvReporterKey = EnvPrefix + "REPORTER_KEY"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the full process configuration.
type Config struct {
	Log     log.Config     `yaml:"log"`
	Storage storage.Config `yaml:"storage"`
	Solver  SolverConfig   `yaml:"solver"`
	API     APIConfig      `yaml:"api"`
	Chain   ChainConfig    `yaml:"chain"`
	Relay   RelayConfig    `yaml:"relay"`
}

type SolverConfig struct {
	Token                   string           `yaml:"-"`
	Key                     crypto.KeyConfig `yaml:"key"`
	DecryptAttempts         int              `yaml:"decrypt_attempts"`
	AllowSentinelContractID bool             `yaml:"allow_sentinel_contract_id"`
}

type APIConfig struct {
	Listen         string        `yaml:"listen"`
	OpsListen      string        `yaml:"ops_listen"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type ChainConfig struct {
	RPCURL          string        `yaml:"rpc_url"`
	ChainID         int64         `yaml:"chain_id"`
	AssetRegistry   string        `yaml:"asset_registry"`
	AuctionHouse    string        `yaml:"auction_house"`
	ReportReceiver  string        `yaml:"report_receiver"`
	ReporterKey     string        `yaml:"-"`
	GasLimit        uint64        `yaml:"gas_limit"`
	StartBlock      uint64        `yaml:"start_block"`
	Confirmations   uint64        `yaml:"confirmations"`
	MaxBlockRange   uint64        `yaml:"max_block_range"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	SubmitReports   bool          `yaml:"submit_reports"`
	ResolveOnEnded  bool          `yaml:"resolve_on_ended"`
	ResolverTimeout time.Duration `yaml:"resolver_timeout"`
}

type RelayConfig struct {
	SolverURL string `yaml:"solver_url"`
}

// Default returns a configuration suitable for local development.
func Default() Config {
	return Config{
		Log: log.Config{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
		Storage: storage.Config{
			Type:    "badger",
			Path:    "./data/maskbid",
			Timeout: 10 * time.Second,
		},
		Solver: SolverConfig{
			Key:             crypto.KeyConfig{Scheme: crypto.SchemeHPKE},
			DecryptAttempts: 2,
		},
		API: APIConfig{
			Listen:         ":8080",
			OpsListen:      ":9090",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 30 * time.Second,
		},
		Chain: ChainConfig{
			GasLimit:        300_000,
			Confirmations:   2,
			MaxBlockRange:   2_000,
			PollInterval:    12 * time.Second,
			ResolverTimeout: 60 * time.Second,
		},
		Relay: RelayConfig{SolverURL: "http://127.0.0.1:8080"},
	}
}

// Load reads an optional YAML file over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays MASKBID_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("STORAGE_TYPE", &c.Storage.Type)
	str("STORAGE_PATH", &c.Storage.Path)
	str("SUPABASE_URL", &c.Storage.SupabaseURL)
	str("API_LISTEN", &c.API.Listen)
	str("OPS_LISTEN", &c.API.OpsListen)
	str("RPC_URL", &c.Chain.RPCURL)
	str("ASSET_REGISTRY", &c.Chain.AssetRegistry)
	str("AUCTION_HOUSE", &c.Chain.AuctionHouse)
	str("REPORT_RECEIVER", &c.Chain.ReportReceiver)
	str("SOLVER_URL", &c.Relay.SolverURL)
	str("BID_KEY_SCHEME", &c.Solver.Key.Scheme)
	str("BID_KEY_FILE", &c.Solver.Key.KeyFile)

	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		c.API.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "ALLOW_SENTINEL_CONTRACT_ID"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: ALLOW_SENTINEL_CONTRACT_ID: %v", ErrInvalidConfig, err)
		}
		c.Solver.AllowSentinelContractID = b
	}
	if v, ok := lookup(EnvPrefix + "CHAIN_ID"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: CHAIN_ID: %v", ErrInvalidConfig, err)
		}
		c.Chain.ChainID = n
	}

	// Secrets.
	if v, ok := lookup(EnvSolverToken); ok {
		c.Solver.Token = v
	}
	if v, ok := lookup(EnvBidKey); ok {
		c.Solver.Key.Key = v
	}
	if v, ok := lookup(EnvSupabaseKey); ok {
		c.Storage.SupabaseKey = v
	}
	if v, ok := lookup(EnvReporterKey); ok {
		c.Chain.ReporterKey = v
	}
	return nil
}

// ValidateSolver checks what the resolution service needs.
func (c Config) ValidateSolver() error {
	var errs []error
	if c.Solver.Token == "" {
		errs = append(errs, fmt.Errorf("%s is not set", EnvSolverToken))
	}
	if c.Solver.Key.Key == "" && c.Solver.Key.KeyFile == "" {
		errs = append(errs, fmt.Errorf("%s or solver.key.key_file is required", EnvBidKey))
	}
	if c.Solver.DecryptAttempts <= 0 {
		errs = append(errs, errors.New("solver.decrypt_attempts must be positive"))
	}
	errs = append(errs, c.validateStorage()...)
	return joinInvalid(errs)
}

// ValidateRelay checks what the relay needs.
func (c Config) ValidateRelay() error {
	var errs []error
	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("chain.rpc_url is required"))
	}
	if c.Chain.AssetRegistry == "" && c.Chain.AuctionHouse == "" {
		errs = append(errs, errors.New("at least one of chain.asset_registry or chain.auction_house is required"))
	}
	if c.Chain.SubmitReports {
		if c.Chain.ReporterKey == "" {
			errs = append(errs, fmt.Errorf("%s is required to submit reports", EnvReporterKey))
		}
		if c.Chain.ReportReceiver == "" {
			errs = append(errs, errors.New("chain.report_receiver is required to submit reports"))
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, errors.New("chain.chain_id is required to submit reports"))
		}
	}
	if c.Chain.ResolveOnEnded && (c.Relay.SolverURL == "" || c.Solver.Token == "") {
		errs = append(errs, fmt.Errorf("relay.solver_url and %s are required to resolve ended auctions", EnvSolverToken))
	}
	if c.Chain.PollInterval <= 0 {
		errs = append(errs, errors.New("chain.poll_interval must be positive"))
	}
	errs = append(errs, c.validateStorage()...)
	return joinInvalid(errs)
}

func (c Config) validateStorage() []error {
	switch c.Storage.Type {
	case "memory", "badger", "":
		return nil
	case "supabase":
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			return []error{fmt.Errorf("storage.supabase_url and %s are required", EnvSupabaseKey)}
		}
		return nil
	default:
		return []error{fmt.Errorf("unknown storage.type %q", c.Storage.Type)}
	}
}

func joinInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
