package prepare

import (
	"fmt"
	"math"

	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// MaxMemoText is the longest text memo a transaction can carry, in bytes.
const MaxMemoText = 28

// Assemble builds the candidate (unsimulated, unsigned) transaction for a
// single Soroban operation. It makes no network call. A nil opts is a
// precondition violation.
func Assemble(account Account, op txnbuild.Operation, opts *BuildOptions) (*txnbuild.Transaction, error) {
	if err := checkInputs(account, op, opts); err != nil {
		return nil, err
	}
	tx, err := newTransaction(account, opts.BaseFee, opts, op)
	if err != nil {
		return nil, stageErr(StageAssemble, err)
	}
	return tx, nil
}

func checkInputs(account Account, op txnbuild.Operation, opts *BuildOptions) error {
	if opts == nil {
		return preconditionErr(StageAssemble, "options are required")
	}
	if opts.BaseFee < txnbuild.MinBaseFee {
		return preconditionErr(StageAssemble, "base fee %d is below the network minimum %d", opts.BaseFee, txnbuild.MinBaseFee)
	}
	if account.ID == "" {
		return preconditionErr(StageAssemble, "source account is required")
	}
	if op == nil {
		return preconditionErr(StageAssemble, "operation is required")
	}
	if !isSorobanOp(op) {
		return preconditionErr(StageAssemble, "operation %T is not a Soroban operation", op)
	}
	if len(opts.Memo) > MaxMemoText {
		return preconditionErr(StageAssemble, "memo is %d bytes, at most %d allowed", len(opts.Memo), MaxMemoText)
	}
	if opts.TimeBounds != nil && opts.TimeBounds.MaxTime != 0 && opts.TimeBounds.MaxTime < opts.TimeBounds.MinTime {
		return preconditionErr(StageAssemble, "time bounds max %d is before min %d", opts.TimeBounds.MaxTime, opts.TimeBounds.MinTime)
	}
	return nil
}

// newTransaction builds an envelope from a private copy of the account, so
// the caller's sequence number is never touched.
func newTransaction(account Account, fee int64, opts *BuildOptions, op txnbuild.Operation) (*txnbuild.Transaction, error) {
	if fee > math.MaxUint32 {
		return nil, fmt.Errorf("fee %d exceeds the 32-bit envelope fee field", fee)
	}
	src := txnbuild.SimpleAccount{AccountID: account.ID, Sequence: account.Sequence}
	params := txnbuild.TransactionParams{
		SourceAccount:        &src,
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              fee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: timeBounds(opts.TimeBounds),
		},
	}
	if opts.Memo != "" {
		params.Memo = txnbuild.MemoText(opts.Memo)
	}
	return txnbuild.NewTransaction(params)
}

// timeBounds converts the caller's bounds. Absent bounds mean no expiry,
// which keeps the build free of clock reads.
func timeBounds(tb *TimeBounds) txnbuild.TimeBounds {
	if tb == nil {
		return txnbuild.NewInfiniteTimeout()
	}
	return txnbuild.NewTimebounds(tb.MinTime, tb.MaxTime)
}

func isSorobanOp(op txnbuild.Operation) bool {
	switch op.(type) {
	case *txnbuild.InvokeHostFunction, *txnbuild.ExtendFootprintTtl, *txnbuild.RestoreFootprint:
		return true
	}
	return false
}

// withSorobanData returns a copy of op carrying the given resource section.
// Simulated authorization entries are attached to an invocation that has none.
func withSorobanData(op txnbuild.Operation, data xdr.SorobanTransactionData, auth []xdr.SorobanAuthorizationEntry) (txnbuild.Operation, error) {
	ext := xdr.TransactionExt{V: 1, SorobanData: &data}
	switch o := op.(type) {
	case *txnbuild.InvokeHostFunction:
		cp := *o
		cp.Ext = ext
		if len(cp.Auth) == 0 && len(auth) > 0 {
			cp.Auth = auth
		}
		return &cp, nil
	case *txnbuild.ExtendFootprintTtl:
		cp := *o
		cp.Ext = ext
		return &cp, nil
	case *txnbuild.RestoreFootprint:
		cp := *o
		cp.Ext = ext
		return &cp, nil
	}
	return nil, fmt.Errorf("operation %T is not a Soroban operation", op)
}
