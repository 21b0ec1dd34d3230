package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/reflector-network/txprep/config"
	"github.com/reflector-network/txprep/internal/rpcclient"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// RPCStatus describes the Stellar RPC node behind a configuration.
type RPCStatus struct {
	Endpoint        string `json:"endpoint"`
	Passphrase      string `json:"passphrase"`
	ProtocolVersion int    `json:"protocol_version"`
	LatestLedger    uint32 `json:"latest_ledger"`
	Version         string `json:"version"`
	CaptiveCore     string `json:"captive_core,omitempty"`
}

// CheckRPC verifies that the node serves the configured network and meets
// rpc.minversion.
func CheckRPC(ctx context.Context, client *rpcclient.Client, cfg *config.Config) (*RPCStatus, error) {
	network, err := client.GetNetwork(ctx)
	if err != nil {
		return nil, fmt.Errorf("getNetwork: %w", err)
	}
	if network.Passphrase != cfg.Passphrase {
		return nil, fmt.Errorf("node at %s serves %q, configured network %s expects %q",
			client.Endpoint(), network.Passphrase, cfg.Network, cfg.Passphrase)
	}
	ledger, err := client.GetLatestLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("getLatestLedger: %w", err)
	}
	info, err := client.CheckVersion(ctx, cfg.RPC.MinVersion)
	if err != nil {
		return nil, err
	}
	return &RPCStatus{
		Endpoint:        client.Endpoint(),
		Passphrase:      network.Passphrase,
		ProtocolVersion: network.ProtocolVersion,
		LatestLedger:    ledger.Sequence,
		Version:         info.Version,
		CaptiveCore:     info.CaptiveCoreVersion,
	}, nil
}
