package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reflector-network/txprep/internal/contract"
	"github.com/reflector-network/txprep/internal/scval"
	"github.com/reflector-network/txprep/pkg/prepare"
)

// txFlags are shared by every command that prepares a transaction.
type txFlags struct {
	source   string
	sequence int64
	memo     string
	output   string
}

func (f *txFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.source, "source", "s", "", "Source account paying for the transaction (G...)")
	cmd.Flags().Int64Var(&f.sequence, "sequence", -1, "Current sequence number of the source; skips the ledger lookup")
	cmd.Flags().StringVar(&f.memo, "memo", "", "Text memo")
	cmd.Flags().StringVarP(&f.output, "output", "o", formatText, "Output format: text, json, xdr")
	_ = cmd.MarkFlagRequired("source")
}

// prepareWith loads the app, resolves the source account and contract, and
// prints whatever call produces.
func prepareWith(cmd *cobra.Command, f *txFlags, call func(ctx context.Context, c *contract.Client, source prepare.Account, opts *prepare.BuildOptions) (*prepare.Result, error)) error {
	if err := checkFormat(f.output); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.contract(flags.ContractID)
	if err != nil {
		return err
	}
	source, err := a.account(ctx, f.source, f.sequence)
	if err != nil {
		return err
	}

	var res *prepare.Result
	err = withSpinner("Simulating", func() error {
		var err error
		res, err = call(ctx, c, source, a.options(f.memo))
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), res, a.cfg.Passphrase, f.output)
}

func newInvokeCmd() *cobra.Command {
	var f txFlags
	cmd := &cobra.Command{
		Use:   "invoke <function> [type:value ...]",
		Short: "Prepare a contract function call",
		Long: `Prepare a call of <function> on the contract. Arguments are typed:

  sym:BTC  str:hello  bool:true  u32:7  i32:-7  u64:..  i64:..
  u128:..  i128:..    bytes:0a0b  addr:G.../C...  xdr:<base64 ScVal>`,
		Example: `  txprep invoke lastprice sym:BTC --source G... --contract C...`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fnArgs, err := scval.ParseArgs(args[1:])
			if err != nil {
				return err
			}
			return prepareWith(cmd, &f, func(ctx context.Context, c *contract.Client, source prepare.Account, opts *prepare.BuildOptions) (*prepare.Result, error) {
				return c.Invoke(ctx, source, args[0], fnArgs, opts)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newAdminCmd() *cobra.Command {
	var f txFlags
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Prepare a call of the contract's admin getter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return prepareWith(cmd, &f, func(ctx context.Context, c *contract.Client, source prepare.Account, opts *prepare.BuildOptions) (*prepare.Result, error) {
				return c.Admin(ctx, source, opts)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	var f txFlags
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Prepare a call of the contract's version getter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return prepareWith(cmd, &f, func(ctx context.Context, c *contract.Client, source prepare.Account, opts *prepare.BuildOptions) (*prepare.Result, error) {
				return c.Version(ctx, source, opts)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newUpdateContractCmd() *cobra.Command {
	var (
		f        txFlags
		admin    string
		wasmHash string
	)
	cmd := &cobra.Command{
		Use:   "update-contract",
		Short: "Prepare a contract wasm upgrade",
		Long: `Prepare an update_contract call switching the contract to the wasm with
the given hash. The admin is the operation source and must sign the envelope
together with the transaction source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(wasmHash) == "" {
				return fmt.Errorf("--wasm-hash is required")
			}
			return prepareWith(cmd, &f, func(ctx context.Context, c *contract.Client, source prepare.Account, opts *prepare.BuildOptions) (*prepare.Result, error) {
				return c.UpdateContract(ctx, source, admin, wasmHash, opts)
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&admin, "admin", "", "Contract admin account (G...)")
	cmd.Flags().StringVar(&wasmHash, "wasm-hash", "", "Hash of the uploaded wasm (32-byte hex)")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}
