package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/hashicorp/go-version"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
)

// MaxBodyLimit caps serve.maxbody.
const MaxBodyLimit = 64 * datasize.MB

// Validate checks the configuration for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, ok := defaults[cfg.Network]; !ok {
		names := make([]string, len(Networks))
		for i, n := range Networks {
			names[i] = string(n)
		}
		return fmt.Errorf("network must be one of %s", strings.Join(names, ", "))
	}
	if cfg.Passphrase == "" {
		return fmt.Errorf("network.passphrase is empty")
	}

	u, err := url.Parse(cfg.RPC.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("rpc.url must be an http(s) URL, got %q", cfg.RPC.URL)
	}
	if cfg.RPC.Timeout <= 0 {
		return fmt.Errorf("rpc.timeout must be positive")
	}
	if cfg.RPC.MinVersion != "" {
		if _, err := version.NewVersion(cfg.RPC.MinVersion); err != nil {
			return fmt.Errorf("rpc.minversion: %w", err)
		}
	}

	if cfg.Build.BaseFee < txnbuild.MinBaseFee {
		return fmt.Errorf("build.basefee must be at least %d stroops", txnbuild.MinBaseFee)
	}
	if cfg.Build.Timeout < 0 {
		return fmt.Errorf("build.timeout must not be negative")
	}
	if cfg.Contract.ID != "" {
		if _, err := strkey.Decode(strkey.VersionByteContract, cfg.Contract.ID); err != nil {
			return fmt.Errorf("contract.id is not a contract address: %w", err)
		}
	}

	if cfg.Serve.Port < 0 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("serve.port must be in range [0, 65535]")
	}
	for _, ip := range cfg.Serve.AllowedIPs {
		if net.ParseIP(ip) == nil {
			if _, _, err := net.ParseCIDR(ip); err != nil {
				return fmt.Errorf("serve.allowed: invalid IP or CIDR %q", ip)
			}
		}
	}
	if cfg.Serve.MaxBody == 0 || cfg.Serve.MaxBody > MaxBodyLimit {
		return fmt.Errorf("serve.maxbody must be in range (0, %s]", MaxBodyLimit)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "off", "":
	default:
		return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
	}
	return nil
}
