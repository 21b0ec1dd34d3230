package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reflector-network/txprep/config"
	klog "github.com/reflector-network/txprep/internal/log"
	"github.com/reflector-network/txprep/internal/node"
)

func newServeCmd() *cobra.Command {
	var skipCheck bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON-RPC preparation server",
		Long: `Serve tx_prepare, contract_admin, contract_version, contract_update,
account_get, journal_list and journal_get over JSON-RPC 2.0 on HTTP.

Logs go to stderr and, unless --log-file is set, to <datadir>/logs/txprep.log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(&flags)
			if err != nil {
				return err
			}

			n, err := node.New(cfg)
			if err != nil {
				return err
			}
			if err := n.Start(cmd.Context(), !skipCheck); err != nil {
				n.Stop()
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			select {
			case sig := <-sigCh:
				klog.Info().Str("signal", sig.String()).Msg("Shutting down")
			case <-cmd.Context().Done():
			}

			n.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.ServeAddr, "addr", "", "Listen address")
	cmd.Flags().IntVar(&flags.ServePort, "port", 0, "Listen port")
	cmd.Flags().StringVar(&flags.ServeAllowed, "allowed", "", "Comma-separated IPs/CIDRs allowed to connect")
	cmd.Flags().StringVar(&flags.ServeCORS, "cors", "", "Comma-separated CORS origins (* for any)")
	cmd.Flags().BoolVar(&skipCheck, "skip-node-check", false, "Start without checking the Stellar RPC node")
	return cmd
}
