package prepare

import (
	"errors"
	"fmt"
	"math"

	"github.com/stellar/go/txnbuild"
)

// Finalize merges an adjusted simulation into the candidate transaction.
// The result keeps the candidate's source, sequence number, memo and time
// bounds, carries the padded resource section, and pays the candidate's base
// fee plus the padded resource fee. It is ready to sign; it is not signed.
func Finalize(candidate *txnbuild.Transaction, adjusted *Adjusted) (*txnbuild.Transaction, error) {
	if candidate == nil || adjusted == nil {
		return nil, stageErr(StageFinalize, errors.New("candidate and adjusted simulation are required"))
	}
	ops := candidate.Operations()
	if len(ops) != 1 {
		return nil, stageErr(StageFinalize, fmt.Errorf("candidate has %d operations, want 1", len(ops)))
	}

	op, err := withSorobanData(ops[0], adjusted.Data, adjusted.Auth)
	if err != nil {
		return nil, stageErr(StageFinalize, err)
	}

	// txnbuild adds the resource fee of the attached section to the base fee.
	if total := candidate.BaseFee() + adjusted.Adjusted.ResourceFee; total > math.MaxUint32 {
		return nil, stageErr(StageFinalize, fmt.Errorf("total fee %d exceeds the 32-bit envelope fee field", total))
	}

	// The candidate already holds the next sequence number.
	src := candidate.SourceAccount()
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &src,
		IncrementSequenceNum: false,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              candidate.BaseFee(),
		Memo:                 candidate.Memo(),
		Preconditions: txnbuild.Preconditions{
			TimeBounds: candidate.Timebounds(),
		},
	})
	if err != nil {
		return nil, stageErr(StageFinalize, err)
	}
	return tx, nil
}
