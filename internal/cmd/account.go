package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reflector-network/txprep/internal/rpc"
)

func newAccountCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "account <address>",
		Short: "Show an account's current sequence number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			acc, err := a.client.GetAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res := rpc.AccountResult{ID: acc.ID, Sequence: acc.Sequence, NextSequence: acc.Sequence + 1}

			w := cmd.OutOrStdout()
			if output == formatJSON {
				return writeJSON(w, res)
			}
			fmt.Fprintf(w, "Account:  %s\n", res.ID)
			fmt.Fprintf(w, "Sequence: %d\n", res.Sequence)
			fmt.Fprintf(w, "Next:     %d\n", res.NextSequence)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format: text, json")
	return cmd
}
