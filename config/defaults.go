package config

import (
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
)

// LocalPassphrase is the passphrase of a standalone quickstart network.
const LocalPassphrase = "Standalone Network ; February 2017"

// networkDefaults are the per-network values that differ.
type networkDefaults struct {
	passphrase string
	rpcURL     string
	servePort  int
}

var defaults = map[NetworkType]networkDefaults{
	Mainnet:   {network.PublicNetworkPassphrase, "https://mainnet.sorobanrpc.com", 8745},
	Testnet:   {network.TestNetworkPassphrase, "https://soroban-testnet.stellar.org", 8746},
	Futurenet: {network.FutureNetworkPassphrase, "https://rpc-futurenet.stellar.org", 8747},
	Local:     {LocalPassphrase, "http://localhost:8000/soroban/rpc", 8748},
}

// PassphraseFor returns the passphrase of a known network, or "".
func PassphraseFor(n NetworkType) string {
	return defaults[n].passphrase
}

// Default returns the default configuration for the given network. Unknown
// networks fall back to testnet.
func Default(n NetworkType) *Config {
	d, ok := defaults[n]
	if !ok {
		n, d = Testnet, defaults[Testnet]
	}
	return &Config{
		Network:    n,
		Passphrase: d.passphrase,
		DataDir:    DefaultDataDir(),
		RPC: RPCConfig{
			URL:     d.rpcURL,
			Timeout: 30 * time.Second,
		},
		Build: BuildConfig{
			BaseFee: txnbuild.MinBaseFee,
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Serve: ServeConfig{
			Addr:       "127.0.0.1",
			Port:       d.servePort,
			AllowedIPs: []string{"127.0.0.1"},
			MaxBody:    1 * datasize.MB,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
