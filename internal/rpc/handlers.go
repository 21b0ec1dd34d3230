package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go/strkey"

	"github.com/reflector-network/txprep/internal/contract"
	"github.com/reflector-network/txprep/internal/journal"
	"github.com/reflector-network/txprep/internal/rpcclient"
	"github.com/reflector-network/txprep/internal/scval"
	"github.com/reflector-network/txprep/pkg/prepare"
)

// defaultJournalLimit is used by journal_list when no limit is given.
const defaultJournalLimit = 20

// ── Preparation endpoints ───────────────────────────────────────────────

func (s *Server) handleTxPrepare(ctx context.Context, req *Request) (interface{}, *Error) {
	var params PrepareParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Function == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "function is required"}
	}
	args, err := scval.ParseArgs(params.Args)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}

	c, source, opts, rpcErr := s.setup(ctx, params.BuildParam)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := c.Invoke(ctx, source, params.Function, args, opts)
	if err != nil {
		return nil, contractError(err)
	}
	return s.prepareResult(res)
}

func (s *Server) handleContractAdmin(ctx context.Context, req *Request) (interface{}, *Error) {
	var params BuildParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	c, source, opts, rpcErr := s.setup(ctx, params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := c.Admin(ctx, source, opts)
	if err != nil {
		return nil, contractError(err)
	}
	return s.prepareResult(res)
}

func (s *Server) handleContractVersion(ctx context.Context, req *Request) (interface{}, *Error) {
	var params BuildParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	c, source, opts, rpcErr := s.setup(ctx, params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := c.Version(ctx, source, opts)
	if err != nil {
		return nil, contractError(err)
	}
	return s.prepareResult(res)
}

func (s *Server) handleContractUpdate(ctx context.Context, req *Request) (interface{}, *Error) {
	var params UpdateParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Admin == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "admin is required"}
	}
	if params.WasmHash == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "wasm_hash is required"}
	}

	c, source, opts, rpcErr := s.setup(ctx, params.BuildParam)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := c.UpdateContract(ctx, source, params.Admin, params.WasmHash, opts)
	if err != nil {
		return nil, contractError(err)
	}
	return s.prepareResult(res)
}

// setup resolves the contract, the source account and the build options
// for a preparing request.
func (s *Server) setup(ctx context.Context, p BuildParam) (*contract.Client, prepare.Account, *prepare.BuildOptions, *Error) {
	var none prepare.Account

	if p.Source == "" {
		return nil, none, nil, &Error{Code: CodeInvalidParams, Message: "source is required"}
	}
	if !strkey.IsValidEd25519PublicKey(p.Source) {
		return nil, none, nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid source address %q", p.Source)}
	}
	contractID := p.ContractID
	if contractID == "" {
		contractID = s.contractID
	}
	if contractID == "" {
		return nil, none, nil, &Error{Code: CodeInvalidParams, Message: "contract_id is required"}
	}
	if p.BaseFee < 0 || p.Timeout < 0 {
		return nil, none, nil, &Error{Code: CodeInvalidParams, Message: "base_fee and timeout must not be negative"}
	}

	c, err := contract.New(s.builder, contractID)
	if err != nil {
		return nil, none, nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	if s.journal != nil {
		c.SetJournal(s.journal)
	}

	source, err := s.accounts.GetAccount(ctx, p.Source)
	if err != nil {
		return nil, none, nil, buildError(err)
	}

	build := s.build
	if p.BaseFee != 0 {
		build.BaseFee = p.BaseFee
	}
	if p.Timeout != 0 {
		build.Timeout = time.Duration(p.Timeout) * time.Second
	}
	return c, source, build.Options(p.Memo, s.now()), nil
}

func (s *Server) prepareResult(res *prepare.Result) (*PrepareResult, *Error) {
	out, err := NewPrepareResult(res, s.builder.Network().Passphrase)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return out, nil
}

// NewPrepareResult renders a pipeline result for the wire.
func NewPrepareResult(res *prepare.Result, passphrase string) (*PrepareResult, error) {
	hash, err := res.Hash(passphrase)
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}
	env, err := res.EnvelopeXDR()
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	ret, err := scval.ParseResult(res.ReturnValue)
	if err != nil {
		return nil, fmt.Errorf("decode return value: %w", err)
	}
	return &PrepareResult{
		Kind:         res.Kind,
		Hash:         hash,
		Envelope:     env,
		Fee:          res.Transaction.MaxFee(),
		Raw:          res.Raw,
		Adjusted:     res.Adjusted,
		ReturnValue:  ret,
		LatestLedger: res.LatestLedger,
	}, nil
}

// ── Account endpoints ───────────────────────────────────────────────────

func (s *Server) handleAccountGet(ctx context.Context, req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if !strkey.IsValidEd25519PublicKey(params.Address) {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid address %q", params.Address)}
	}
	acc, err := s.accounts.GetAccount(ctx, params.Address)
	if err != nil {
		return nil, buildError(err)
	}
	return &AccountResult{ID: acc.ID, Sequence: acc.Sequence, NextSequence: acc.Sequence + 1}, nil
}

// ── Journal endpoints ───────────────────────────────────────────────────

func (s *Server) handleJournalList(req *Request) (interface{}, *Error) {
	if s.journal == nil {
		return nil, &Error{Code: CodeNotFound, Message: "journal not enabled"}
	}
	params := LimitParam{Limit: defaultJournalLimit}
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}
	if params.Limit <= 0 {
		params.Limit = defaultJournalLimit
	}
	records, err := s.journal.List(params.Limit)
	if err != nil {
		return nil, buildError(err)
	}
	if records == nil {
		records = []*journal.Record{}
	}
	return &JournalListResult{Records: records, Count: len(records)}, nil
}

func (s *Server) handleJournalGet(req *Request) (interface{}, *Error) {
	if s.journal == nil {
		return nil, &Error{Code: CodeNotFound, Message: "journal not enabled"}
	}
	var params HashParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Hash == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "hash is required"}
	}
	rec, err := s.journal.Get(params.Hash)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return nil, buildError(err)
		}
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return rec, nil
}

// ── Error mapping ───────────────────────────────────────────────────────

// buildError maps a pipeline or lookup error to a JSON-RPC error. Pipeline
// errors carry the failing stage in Data.
func buildError(err error) *Error {
	rpcErr := &Error{Code: CodeInternalError, Message: err.Error()}
	var be *prepare.BuildError
	if errors.As(err, &be) {
		rpcErr.Data = ErrorData{Stage: be.Stage}
	}
	switch {
	case errors.Is(err, prepare.ErrPrecondition):
		rpcErr.Code = CodeInvalidParams
	case errors.Is(err, prepare.ErrSimulation):
		rpcErr.Code = CodeSimulationFailed
	case errors.Is(err, prepare.ErrFeeExtraction):
		rpcErr.Code = CodeFeeExtraction
	case errors.Is(err, rpcclient.ErrAccountNotFound), errors.Is(err, journal.ErrNotFound):
		rpcErr.Code = CodeNotFound
	}
	return rpcErr
}

// contractError maps an error from the contract client. Anything that did
// not come out of the pipeline is a rejected argument.
func contractError(err error) *Error {
	var be *prepare.BuildError
	if errors.As(err, &be) {
		return buildError(err)
	}
	return &Error{Code: CodeInvalidParams, Message: err.Error()}
}
