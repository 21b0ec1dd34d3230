package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration values from a .conf file.
// Format: key = value (one per line, # for comments). A missing file yields
// no values.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file values to cfg. The network key is applied
// by Load before defaults are chosen and is ignored here.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "network":
		// Selects the defaults; see Load.
	case "network.passphrase":
		cfg.Passphrase = value
	case "datadir":
		cfg.DataDir = value

	case "rpc.url":
		cfg.RPC.URL = value
	case "rpc.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.RPC.Timeout = d
	case "rpc.minversion":
		cfg.RPC.MinVersion = value

	case "build.basefee":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Build.BaseFee = n
	case "build.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Build.Timeout = d

	case "contract.id":
		cfg.Contract.ID = value

	case "journal.enabled", "journal":
		cfg.Journal.Enabled = parseBool(value)

	case "serve.addr":
		cfg.Serve.Addr = value
	case "serve.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Serve.Port = port
	case "serve.allowed":
		cfg.Serve.AllowedIPs = parseStringList(value)
	case "serve.cors":
		cfg.Serve.CORSOrigins = parseStringList(value)
	case "serve.maxbody":
		if err := cfg.Serve.MaxBody.UnmarshalText([]byte(value)); err != nil {
			return err
		}

	case "trace.endpoint":
		cfg.Trace.Endpoint = value

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a commented default configuration file.
func WriteDefaultConfig(path string, n NetworkType) error {
	d := Default(n)
	content := `# txprep configuration
#
# Command-line flags override every value in this file.

# Network: mainnet, testnet, futurenet or local
network = ` + string(d.Network) + `

# Network passphrase (defaults to the selected network's)
# network.passphrase = ` + d.Passphrase + `

# Data directory (default: ~/.txprep)
# datadir = ~/.txprep

# ============================================================================
# Stellar RPC
# ============================================================================

rpc.url = ` + d.RPC.URL + `
rpc.timeout = ` + d.RPC.Timeout.String() + `
# Refuse nodes older than this version
# rpc.minversion = 22.0.0

# ============================================================================
# Transactions
# ============================================================================

# Base fee per operation in stroops
build.basefee = ` + strconv.FormatInt(d.Build.BaseFee, 10) + `
# Validity window of prepared transactions (0 = no expiry)
# build.timeout = 5m

# Default contract for admin, version and update-contract
# contract.id = C...

# Keep a local history of prepared transactions
journal.enabled = true

# ============================================================================
# Preparation server (txprep serve)
# ============================================================================

serve.addr = ` + d.Serve.Addr + `
serve.port = ` + strconv.Itoa(d.Serve.Port) + `
serve.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# serve.cors = http://localhost:3000
serve.maxbody = ` + d.Serve.MaxBody.String() + `

# ============================================================================
# Tracing
# ============================================================================

# OTLP/HTTP collector, e.g. localhost:4318
# trace.endpoint =

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
