package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/reflector-network/txprep/internal/journal"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List prepared transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			return withJournal(cmd, func(j *journal.Journal) error {
				records, err := j.List(limit)
				if err != nil {
					return err
				}
				if output == formatJSON {
					if records == nil {
						records = []*journal.Record{}
					}
					return writeJSON(cmd.OutOrStdout(), records)
				}
				return printRecords(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records; 0 lists all")
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format: text, json")

	cmd.AddCommand(newHistoryShowCmd(), newHistoryFindCmd(), newHistoryClearCmd())
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <hash>",
		Short: "Show one prepared transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			return withJournal(cmd, func(j *journal.Journal) error {
				rec, err := j.Get(args[0])
				if err != nil {
					return err
				}
				switch output {
				case formatJSON:
					return writeJSON(cmd.OutOrStdout(), rec)
				case formatXDR:
					_, err := fmt.Fprintln(cmd.OutOrStdout(), rec.Envelope)
					return err
				}
				return printRecord(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format: text, json, xdr")
	return cmd
}

func newHistoryFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <fingerprint>",
		Short: "List transactions prepared from the same request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, func(j *journal.Journal) error {
				records, err := j.ByFingerprint(args[0])
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), records)
			})
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the journal of the selected network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, func(j *journal.Journal) error {
				if !yes {
					ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Delete all prepared transactions? [y/N] ")
					if err != nil {
						return err
					}
					if !ok {
						return errors.New("aborted")
					}
				}
				if err := j.Clear(); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Journal cleared.")
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// withJournal runs fn against the configured journal.
func withJournal(cmd *cobra.Command, fn func(*journal.Journal) error) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.journal == nil {
		return errors.New("journal is disabled (journal.enabled = false or --no-journal)")
	}
	return fn(a.journal)
}

// confirm asks a yes/no question. Only an interactive stdin may answer.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return false, errors.New("refusing to ask for confirmation without a terminal; pass --yes")
	}
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
