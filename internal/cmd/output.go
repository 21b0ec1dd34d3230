package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/reflector-network/txprep/internal/journal"
	"github.com/reflector-network/txprep/internal/rpc"
	"github.com/reflector-network/txprep/pkg/prepare"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatXDR  = "xdr"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatXDR:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or xdr)", format)
}

// printResult writes a prepared transaction in the requested format.
func printResult(w io.Writer, res *prepare.Result, passphrase, format string) error {
	out, err := rpc.NewPrepareResult(res, passphrase)
	if err != nil {
		return err
	}
	switch format {
	case formatJSON:
		return writeJSON(w, out)
	case formatXDR:
		_, err := fmt.Fprintln(w, out.Envelope)
		return err
	}

	fmt.Fprintf(w, "Kind:     %s\n", out.Kind)
	fmt.Fprintf(w, "Hash:     %s\n", out.Hash)
	fmt.Fprintf(w, "Fee:      %d stroops\n", out.Fee)
	fmt.Fprintf(w, "Ledger:   %d\n", out.LatestLedger)
	if out.ReturnValue != nil {
		ret, err := json.Marshal(out.ReturnValue)
		if err != nil {
			return fmt.Errorf("encode return value: %w", err)
		}
		fmt.Fprintf(w, "Returns:  %s\n", ret)
	}
	if out.Kind == prepare.KindRestore {
		fmt.Fprintln(w, "Note:     submit this restoration, then prepare the call again")
	}
	fmt.Fprintln(w)
	if err := printCosts(w, out.Raw, out.Adjusted); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Envelope:")
	_, err = fmt.Fprintln(w, out.Envelope)
	return err
}

// printCosts writes the simulated and adjusted figures side by side.
func printCosts(w io.Writer, raw, adjusted prepare.Footprint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Resource\tSimulated\tAdjusted\t")
	fmt.Fprintf(tw, "cpuInsns\t%d\t%d\t\n", raw.Instructions, adjusted.Instructions)
	fmt.Fprintf(tw, "readBytes\t%d\t%d\t\n", raw.ReadBytes, adjusted.ReadBytes)
	fmt.Fprintf(tw, "writeBytes\t%d\t%d\t\n", raw.WriteBytes, adjusted.WriteBytes)
	fmt.Fprintf(tw, "resourceFee\t%d\t%d\t\n", raw.ResourceFee, adjusted.ResourceFee)
	return tw.Flush()
}

// printRecords writes a journal listing, newest first.
func printRecords(w io.Writer, records []*journal.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No prepared transactions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tHASH\tKIND\tFUNCTION\tFEE")
	for _, rec := range records {
		fn := rec.Function
		if fn == "" {
			fn = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			rec.CreatedAt.Local().Format(time.DateTime), rec.Hash, rec.Kind, fn, rec.Fee)
	}
	return tw.Flush()
}

// printRecord writes one journal record in full.
func printRecord(w io.Writer, rec *journal.Record) error {
	fmt.Fprintf(w, "Hash:        %s\n", rec.Hash)
	fmt.Fprintf(w, "Network:     %s\n", rec.Network)
	fmt.Fprintf(w, "Kind:        %s\n", rec.Kind)
	fmt.Fprintf(w, "Created:     %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Source:      %s (seq %d)\n", rec.Source, rec.Sequence)
	if rec.Contract != "" {
		fmt.Fprintf(w, "Contract:    %s\n", rec.Contract)
		fmt.Fprintf(w, "Function:    %s\n", rec.Function)
	}
	fmt.Fprintf(w, "Fee:         %d stroops\n", rec.Fee)
	fmt.Fprintf(w, "Ledger:      %d\n", rec.LatestLedger)
	fmt.Fprintf(w, "Fingerprint: %s\n", rec.Fingerprint)
	fmt.Fprintln(w)
	if err := printCosts(w, rec.Raw, rec.Adjusted); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Envelope:")
	_, err := fmt.Fprintln(w, rec.Envelope)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
