// Package contract prepares calls against a single deployed Soroban contract.
package contract

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/reflector-network/txprep/internal/journal"
	klog "github.com/reflector-network/txprep/internal/log"
	"github.com/reflector-network/txprep/internal/scval"
	"github.com/reflector-network/txprep/pkg/prepare"
)

// Contract function names.
const (
	FnAdmin          = "admin"
	FnVersion        = "version"
	FnUpdateContract = "update_contract"
)

// Client binds a contract id to a preparation pipeline.
type Client struct {
	contractID string
	builder    *prepare.Builder
	journal    *journal.Journal // nil = not recorded
	logger     zerolog.Logger
}

// New creates a client for contractID (a C... strkey).
func New(builder *prepare.Builder, contractID string) (*Client, error) {
	if builder == nil {
		return nil, fmt.Errorf("nil builder")
	}
	if _, err := prepare.ContractAddress(contractID); err != nil {
		return nil, err
	}
	return &Client{
		contractID: contractID,
		builder:    builder,
		logger:     klog.WithContract(contractID),
	}, nil
}

// SetJournal records every successful build in j. Call before first use.
func (c *Client) SetJournal(j *journal.Journal) {
	c.journal = j
}

// ContractID returns the contract strkey.
func (c *Client) ContractID() string {
	return c.contractID
}

// Network returns the network the underlying pipeline targets.
func (c *Client) Network() prepare.Network {
	return c.builder.Network()
}

// Invoke prepares a call of fn with args.
func (c *Client) Invoke(ctx context.Context, source prepare.Account, fn string, args []xdr.ScVal, opts *prepare.BuildOptions) (*prepare.Result, error) {
	op, err := prepare.NewInvocation(c.contractID, fn, args...)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("fn", fn).Int("args", len(args)).Msg("Preparing invocation")
	return c.build(ctx, source, fn, op, opts)
}

// UpdateContract prepares an upgrade to the wasm identified by wasmHashHex.
// The invocation runs with admin as its operation source, so the admin's
// signature authorizes it while source pays.
func (c *Client) UpdateContract(ctx context.Context, source prepare.Account, admin, wasmHashHex string, opts *prepare.BuildOptions) (*prepare.Result, error) {
	if !strkey.IsValidEd25519PublicKey(admin) {
		return nil, fmt.Errorf("invalid admin address %q", admin)
	}
	hash, err := hex.DecodeString(strings.TrimPrefix(wasmHashHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid wasm hash: %w", err)
	}
	if len(hash) != 32 {
		return nil, fmt.Errorf("wasm hash must be 32 bytes, got %d", len(hash))
	}

	op, err := prepare.NewInvocation(c.contractID, FnUpdateContract, scval.Bytes(hash))
	if err != nil {
		return nil, err
	}
	op.SourceAccount = admin
	c.logger.Info().Str("admin", admin).Str("wasm", hex.EncodeToString(hash)).Msg("Preparing contract update")
	return c.build(ctx, source, FnUpdateContract, op, opts)
}

// Admin prepares a call of the contract's admin getter.
func (c *Client) Admin(ctx context.Context, source prepare.Account, opts *prepare.BuildOptions) (*prepare.Result, error) {
	return c.Invoke(ctx, source, FnAdmin, nil, opts)
}

// Version prepares a call of the contract's version getter.
func (c *Client) Version(ctx context.Context, source prepare.Account, opts *prepare.BuildOptions) (*prepare.Result, error) {
	return c.Invoke(ctx, source, FnVersion, nil, opts)
}

func (c *Client) build(ctx context.Context, source prepare.Account, fn string, op txnbuild.Operation, opts *prepare.BuildOptions) (*prepare.Result, error) {
	var fingerprint string
	if c.journal != nil {
		fp, err := journal.Fingerprint(c.builder.Network().Passphrase, source, op, opts)
		if err != nil {
			return nil, err
		}
		fingerprint = fp
	}

	res, err := c.builder.Build(ctx, source, op, opts)
	if err != nil || c.journal == nil {
		return res, err
	}

	// A journal failure never discards a prepared transaction.
	rec, jerr := c.journal.RecordResult(res, journal.Meta{
		Contract:    c.contractID,
		Function:    fn,
		Fingerprint: fingerprint,
	})
	if jerr != nil {
		c.logger.Warn().Err(jerr).Str("fn", fn).Msg("Failed to journal prepared transaction")
		return res, nil
	}
	c.logger.Debug().Str("hash", rec.Hash).Str("kind", string(rec.Kind)).Msg("Journaled transaction")
	return res, nil
}
