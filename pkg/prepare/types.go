// Package prepare turns a proposed Soroban contract invocation into a
// fee-correct, signable transaction by round-tripping it through transaction
// simulation.
//
// The pipeline assembles a candidate envelope, simulates it, and then either
// builds a footprint restoration transaction (when simulation reports archived
// ledger entries) or pads the simulated resource figures and fee before
// assembling the final transaction. Nothing here signs or submits.
package prepare

import (
	"context"
	"fmt"

	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// Account is the transaction source as currently recorded on the ledger.
// Sequence is the account's current sequence number; the built envelope
// uses the next one, derived from a private copy.
type Account struct {
	ID       string `json:"id"`
	Sequence int64  `json:"sequence"`
}

// TimeBounds bounds the validity window of a transaction (unix seconds,
// 0 meaning unbounded on that side).
type TimeBounds struct {
	MinTime int64 `json:"min_time"`
	MaxTime int64 `json:"max_time"`
}

// BuildOptions are the transaction-level parameters supplied by the caller.
type BuildOptions struct {
	BaseFee    int64       `json:"base_fee"`
	Memo       string      `json:"memo,omitempty"`
	TimeBounds *TimeBounds `json:"time_bounds,omitempty"`
}

// Network is the immutable network configuration shared by concurrent builds.
type Network struct {
	Passphrase string
	RPCURL     string
}

// Footprint is the cost envelope of a Soroban transaction.
type Footprint struct {
	Instructions uint32 `json:"instructions"`
	ReadBytes    uint32 `json:"read_bytes"`
	WriteBytes   uint32 `json:"write_bytes"`
	ResourceFee  int64  `json:"resource_fee"`
}

func (f Footprint) String() string {
	return fmt.Sprintf("{cpuInsns: %d, readBytes: %d, writeBytes: %d, fee: %d}",
		f.Instructions, f.ReadBytes, f.WriteBytes, f.ResourceFee)
}

// RestorePreamble is reported by simulation when ledger entries the
// operation touches are archived and must be restored first.
type RestorePreamble struct {
	TransactionData string `json:"transactionData"` // base64 xdr.SorobanTransactionData
	MinResourceFee  string `json:"minResourceFee"`
}

// HostFunctionResult is the simulated outcome of one host function call.
type HostFunctionResult struct {
	Auth []string `json:"auth"` // base64 xdr.SorobanAuthorizationEntry
	XDR  string   `json:"xdr"`  // base64 xdr.ScVal
}

// SimulationResult is the simulator's answer for one candidate transaction.
// Exactly one of Error, RestorePreamble, or the success fields is set.
// It belongs to a single build call and is never reused.
type SimulationResult struct {
	Error           string               `json:"error,omitempty"`
	TransactionData string               `json:"transactionData,omitempty"`
	MinResourceFee  string               `json:"minResourceFee,omitempty"`
	RestorePreamble *RestorePreamble     `json:"restorePreamble,omitempty"`
	Results         []HostFunctionResult `json:"results,omitempty"`
	LatestLedger    uint32               `json:"latestLedger"`
}

// NeedsRestore reports whether the simulation carries a restore preamble.
func (s *SimulationResult) NeedsRestore() bool {
	return s.RestorePreamble != nil
}

// Simulator executes a transaction against current ledger state without
// committing it. Cancellation and timeouts belong to the implementation.
type Simulator interface {
	Simulate(ctx context.Context, tx *txnbuild.Transaction) (*SimulationResult, error)
}

// Kind distinguishes the two successful outcomes of a build.
type Kind string

const (
	// KindPrepared is the requested operation, padded and ready to sign.
	KindPrepared Kind = "prepared"
	// KindRestore is a footprint restoration transaction. Submit it, then
	// build the original operation again.
	KindRestore Kind = "restore"
)

// Result is the single transaction emitted by a successful build.
type Result struct {
	Kind        Kind
	Transaction *txnbuild.Transaction
	Raw         Footprint
	Adjusted    Footprint
	// ReturnValue is the simulated return value of the invocation, if any.
	ReturnValue  *xdr.ScVal
	LatestLedger uint32
}

// EnvelopeXDR returns the base64 transaction envelope.
func (r *Result) EnvelopeXDR() (string, error) {
	return r.Transaction.Base64()
}

// Hash returns the hex transaction hash for the given network passphrase.
func (r *Result) Hash(passphrase string) (string, error) {
	return r.Transaction.HashHex(passphrase)
}
