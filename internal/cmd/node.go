package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reflector-network/txprep/internal/node"
)

func newNodeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Check the configured Stellar RPC node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := node.CheckRPC(cmd.Context(), a.client, a.cfg)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output == formatJSON {
				return writeJSON(w, status)
			}
			fmt.Fprintf(w, "Endpoint: %s\n", status.Endpoint)
			fmt.Fprintf(w, "Network:  %s\n", status.Passphrase)
			fmt.Fprintf(w, "Protocol: %d\n", status.ProtocolVersion)
			fmt.Fprintf(w, "Ledger:   %d\n", status.LatestLedger)
			fmt.Fprintf(w, "Version:  %s\n", status.Version)
			if status.CaptiveCore != "" {
				fmt.Fprintf(w, "Core:     %s\n", status.CaptiveCore)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format: text, json")
	return cmd
}
