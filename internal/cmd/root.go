// Package cmd implements the txprep command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/reflector-network/txprep/config"
)

// flags collects the global overrides handed to config.Load.
var flags config.Flags

// Execute runs the txprep command line.
func Execute() error {
	return newRootCmd().Execute()
}

// newRootCmd builds the command tree and resets the global flags.
func newRootCmd() *cobra.Command {
	flags = config.Flags{}

	root := &cobra.Command{
		Use:   "txprep",
		Short: "Prepare Soroban contract invocations for signing",
		Long: `txprep builds Soroban contract invocation transactions, simulates them
against a Stellar RPC node, and pads the simulated resources and fee so the
resulting envelope can be signed and submitted as is. When simulation reports
archived ledger entries it prepares the footprint restoration instead.

Nothing is signed or submitted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			flags.SetLogJSON = cmd.Flags().Changed("log-json")
		},
	}

	pf := root.PersistentFlags()

	pf.StringVarP(&flags.Network, "network", "n", "", "Stellar network: mainnet, testnet, futurenet, local")
	pf.StringVar(&flags.DataDir, "datadir", "", "Data directory (default: "+config.DefaultDataDir()+")")
	pf.StringVarP(&flags.Config, "config", "c", "", "Config file (default: <datadir>/txprep.conf)")

	pf.StringVar(&flags.RPCURL, "rpc", "", "Stellar RPC endpoint")
	pf.DurationVar(&flags.RPCTimeout, "rpc-timeout", 0, "Stellar RPC request timeout")

	pf.Int64Var(&flags.BaseFee, "base-fee", 0, "Base fee per operation in stroops")
	pf.DurationVar(&flags.BuildTimeout, "timeout", 0, "Transaction validity window")
	pf.StringVar(&flags.ContractID, "contract", "", "Contract id (C...)")

	pf.BoolVar(&flags.NoJournal, "no-journal", false, "Do not record prepared transactions")

	pf.StringVar(&flags.TraceEndpoint, "trace", "", "OTLP/HTTP trace collector (host:port)")

	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.LogFile, "log-file", "", "Also write JSON logs to this file")
	pf.BoolVar(&flags.LogJSON, "log-json", false, "Log JSON to stderr")

	root.AddCommand(
		newInvokeCmd(),
		newAdminCmd(),
		newVersionCmd(),
		newUpdateContractCmd(),
		newAccountCmd(),
		newHistoryCmd(),
		newNodeCmd(),
		newServeCmd(),
	)
	return root
}
