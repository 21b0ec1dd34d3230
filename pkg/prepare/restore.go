package prepare

import (
	"errors"
	"fmt"
	"math"

	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// BuildRestore builds the footprint restoration transaction for a restore
// preamble. It uses the same account and sequence as the requested build,
// replaces the requested operation with a single RestoreFootprint, and
// carries the preamble's resource section unchanged. The fee is the base fee
// plus the preamble's minimum resource fee, padded by RoundValue.
//
// The requested operation is not retried: submit the restore transaction,
// then build the original operation again.
func BuildRestore(preamble *RestorePreamble, account Account, opts *BuildOptions) (*txnbuild.Transaction, error) {
	tx, _, err := restoreTransaction(preamble, account, opts)
	return tx, err
}

func restoreTransaction(preamble *RestorePreamble, account Account, opts *BuildOptions) (*txnbuild.Transaction, Footprint, error) {
	if opts == nil {
		return nil, Footprint{}, preconditionErr(StageRestore, "options are required")
	}
	if len(opts.Memo) > MaxMemoText {
		return nil, Footprint{}, preconditionErr(StageRestore, "memo is %d bytes, at most %d allowed", len(opts.Memo), MaxMemoText)
	}
	if preamble == nil {
		return nil, Footprint{}, stageErr(StageRestore, errors.New("restore preamble is missing"))
	}

	minFee, err := parseFee(preamble.MinResourceFee)
	if err != nil {
		return nil, Footprint{}, feeErr(StageRestore, err)
	}

	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(preamble.TransactionData, &data); err != nil {
		return nil, Footprint{}, stageErr(StageRestore, fmt.Errorf("decode restore transaction data: %w", err))
	}

	// The envelope fee is the padded total. txnbuild adds the section's
	// resource fee, so only the remainder goes in as the base fee.
	fee := int64(RoundValue(float64(opts.BaseFee) + minFee))
	if fee > math.MaxUint32 {
		return nil, Footprint{}, stageErr(StageRestore, fmt.Errorf("total fee %d exceeds the 32-bit envelope fee field", fee))
	}
	inclusion := fee - int64(data.ResourceFee)
	if inclusion < txnbuild.MinBaseFee {
		return nil, Footprint{}, feeErr(StageRestore, fmt.Errorf("restore fee %d leaves %d stroops above the preamble resource fee %d, below the network minimum %d",
			fee, inclusion, data.ResourceFee, txnbuild.MinBaseFee))
	}
	op := &txnbuild.RestoreFootprint{
		Ext: xdr.TransactionExt{V: 1, SorobanData: &data},
	}
	tx, err := newTransaction(account, inclusion, opts, op)
	if err != nil {
		return nil, Footprint{}, stageErr(StageRestore, err)
	}
	return tx, footprintOf(data), nil
}

// footprintOf reads the cost envelope out of a resource section.
func footprintOf(data xdr.SorobanTransactionData) Footprint {
	return Footprint{
		Instructions: uint32(data.Resources.Instructions),
		ReadBytes:    uint32(data.Resources.DiskReadBytes),
		WriteBytes:   uint32(data.Resources.WriteBytes),
		ResourceFee:  int64(data.ResourceFee),
	}
}
