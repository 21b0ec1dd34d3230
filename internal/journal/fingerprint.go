package journal

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/stellar/go/txnbuild"
	"github.com/zeebo/blake3"

	"github.com/reflector-network/txprep/pkg/prepare"
)

// Fingerprint hashes a build request with BLAKE3: network passphrase,
// source account and sequence, the operation's XDR and the options. Two
// requests share a fingerprint exactly when the pipeline sees identical
// inputs.
func Fingerprint(passphrase string, account prepare.Account, op txnbuild.Operation, opts *prepare.BuildOptions) (string, error) {
	if op == nil {
		return "", fmt.Errorf("nil operation")
	}
	xop, err := op.BuildXDR()
	if err != nil {
		return "", fmt.Errorf("encode operation: %w", err)
	}
	opBytes, err := xop.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode operation: %w", err)
	}

	h := blake3.New()
	writeField(h, []byte(passphrase))
	writeField(h, []byte(account.ID))
	writeUint(h, uint64(account.Sequence))
	writeField(h, opBytes)
	if opts != nil {
		writeUint(h, uint64(opts.BaseFee))
		writeField(h, []byte(opts.Memo))
		if opts.TimeBounds != nil {
			writeUint(h, uint64(opts.TimeBounds.MinTime))
			writeUint(h, uint64(opts.TimeBounds.MaxTime))
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeField writes a length-prefixed field so adjacent fields cannot
// collide.
func writeField(h io.Writer, b []byte) {
	writeUint(h, uint64(len(b)))
	_, _ = h.Write(b)
}

func writeUint(h io.Writer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}
