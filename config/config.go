// Package config handles txprep configuration.
//
// Settings are layered: per-network defaults, then the txprep.conf file in
// the data directory, then command-line flags. Validate runs last.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/reflector-network/txprep/pkg/prepare"
)

// NetworkType identifies a Stellar network.
type NetworkType string

const (
	Mainnet   NetworkType = "mainnet"
	Testnet   NetworkType = "testnet"
	Futurenet NetworkType = "futurenet"
	Local     NetworkType = "local"
)

// Networks lists the known networks in display order.
var Networks = []NetworkType{Mainnet, Testnet, Futurenet, Local}

// Config holds runtime configuration.
type Config struct {
	// Core
	Network    NetworkType `conf:"network"`
	Passphrase string      `conf:"network.passphrase"`
	DataDir    string      `conf:"datadir"`

	// Stellar RPC node
	RPC RPCConfig

	// Transaction defaults
	Build BuildConfig

	// Default contract for contract commands
	Contract ContractConfig

	// Local history of prepared transactions
	Journal JournalConfig

	// Preparation server
	Serve ServeConfig

	// OpenTelemetry export
	Trace TraceConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds Stellar RPC client settings.
type RPCConfig struct {
	URL        string        `conf:"rpc.url"`
	Timeout    time.Duration `conf:"rpc.timeout"`
	MinVersion string        `conf:"rpc.minversion"` // Oldest node version accepted; empty disables the check.
}

// BuildConfig holds defaults for BuildOptions.
type BuildConfig struct {
	BaseFee int64         `conf:"build.basefee"` // Stroops per operation.
	Timeout time.Duration `conf:"build.timeout"` // Validity window; 0 means no upper time bound.
}

// Options returns build options carrying the configured base fee and, when
// Timeout is set, an upper time bound of now+Timeout.
func (b BuildConfig) Options(memo string, now time.Time) *prepare.BuildOptions {
	opts := &prepare.BuildOptions{BaseFee: b.BaseFee, Memo: memo}
	if b.Timeout > 0 {
		opts.TimeBounds = &prepare.TimeBounds{MaxTime: now.Add(b.Timeout).Unix()}
	}
	return opts
}

// ContractConfig names the contract used when a command gets none.
type ContractConfig struct {
	ID string `conf:"contract.id"`
}

// JournalConfig controls the build journal.
type JournalConfig struct {
	Enabled bool `conf:"journal.enabled"`
}

// ServeConfig holds preparation server settings.
type ServeConfig struct {
	Addr        string            `conf:"serve.addr"`
	Port        int               `conf:"serve.port"`
	AllowedIPs  []string          `conf:"serve.allowed"`
	CORSOrigins []string          `conf:"serve.cors"` // "*" allows all origins.
	MaxBody     datasize.ByteSize `conf:"serve.maxbody"`
}

// TraceConfig holds the OTLP/HTTP exporter endpoint; empty disables export.
type TraceConfig struct {
	Endpoint string `conf:"trace.endpoint"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.txprep
//	macOS:   ~/Library/Application Support/Txprep
//	Windows: %APPDATA%\Txprep
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".txprep"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Txprep")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Txprep")
		}
		return filepath.Join(home, "AppData", "Roaming", "Txprep")
	default:
		return filepath.Join(home, ".txprep")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// JournalDir returns the journal database directory.
func (c *Config) JournalDir() string {
	return filepath.Join(c.NetworkDataDir(), "journal")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "txprep.conf")
}
