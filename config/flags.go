package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Flags holds command-line overrides. Zero values mean "not set"; the Set*
// fields record explicitly given booleans.
type Flags struct {
	// Core
	Network string
	DataDir string
	Config  string

	// RPC
	RPCURL     string
	RPCTimeout time.Duration

	// Transactions
	BaseFee      int64
	BuildTimeout time.Duration
	ContractID   string

	// Journal
	NoJournal bool

	// Preparation server
	ServeAddr    string
	ServePort    int
	ServeAllowed string
	ServeCORS    string

	// Tracing
	TraceEndpoint string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	SetLogJSON bool
}

// ApplyFlags applies command-line flags to cfg.
func ApplyFlags(cfg *Config, f *Flags) {
	if f == nil {
		return
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.RPCURL != "" {
		cfg.RPC.URL = f.RPCURL
	}
	if f.RPCTimeout != 0 {
		cfg.RPC.Timeout = f.RPCTimeout
	}

	if f.BaseFee != 0 {
		cfg.Build.BaseFee = f.BaseFee
	}
	if f.BuildTimeout != 0 {
		cfg.Build.Timeout = f.BuildTimeout
	}
	if f.ContractID != "" {
		cfg.Contract.ID = f.ContractID
	}

	if f.NoJournal {
		cfg.Journal.Enabled = false
	}

	if f.ServeAddr != "" {
		cfg.Serve.Addr = f.ServeAddr
	}
	if f.ServePort != 0 {
		cfg.Serve.Port = f.ServePort
	}
	if f.ServeAllowed != "" {
		cfg.Serve.AllowedIPs = parseStringList(f.ServeAllowed)
	}
	if f.ServeCORS != "" {
		cfg.Serve.CORSOrigins = parseStringList(f.ServeCORS)
	}

	if f.TraceEndpoint != "" {
		cfg.Trace.Endpoint = f.TraceEndpoint
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// Load builds the configuration with the following precedence:
//  1. Default values for the selected network
//  2. Auto-created data dirs + default config (idempotent)
//  3. Config file
//  4. Command-line flags
//
// The network comes from the flag, else the config file, else testnet.
func Load(f *Flags) (*Config, error) {
	if f == nil {
		f = &Flags{}
	}

	dataDir := f.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	configPath := f.Config
	if configPath == "" {
		configPath = (&Config{DataDir: dataDir}).ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	network := Testnet
	if v := fileValues["network"]; v != "" {
		network = NetworkType(strings.ToLower(v))
	}
	if f.Network != "" {
		network = NetworkType(strings.ToLower(f.Network))
	}
	if _, ok := defaults[network]; !ok {
		return nil, fmt.Errorf("unknown network %q", network)
	}

	cfg := Default(network)
	cfg.DataDir = dataDir
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}
	ApplyFlags(cfg, f)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every start.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.LogsDir(),
	}
	if cfg.Journal.Enabled {
		dirs = append(dirs, cfg.JournalDir())
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
