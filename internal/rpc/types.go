package rpc

import (
	"github.com/reflector-network/txprep/internal/journal"
	"github.com/reflector-network/txprep/pkg/prepare"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000

	// Preparation failures.
	CodeSimulationFailed = -32001
	CodeFeeExtraction    = -32002
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorData is attached to errors raised by the preparation pipeline.
type ErrorData struct {
	Stage prepare.Stage `json:"stage"`
}

// ── Param types ─────────────────────────────────────────────────────────

// BuildParam carries the transaction-level fields shared by every
// preparing method. Zero values fall back to the server defaults.
type BuildParam struct {
	Source     string `json:"source"`
	ContractID string `json:"contract_id,omitempty"`
	Memo       string `json:"memo,omitempty"`
	BaseFee    int64  `json:"base_fee,omitempty"`
	Timeout    int64  `json:"timeout,omitempty"` // Seconds until the transaction expires.
}

// PrepareParam is used by tx_prepare. Args use the "type:value" form,
// e.g. "u32:7" or "addr:G...".
type PrepareParam struct {
	BuildParam
	Function string   `json:"function"`
	Args     []string `json:"args,omitempty"`
}

// UpdateParam is used by contract_update.
type UpdateParam struct {
	BuildParam
	Admin    string `json:"admin"`
	WasmHash string `json:"wasm_hash"`
}

// AddressParam is used by account_get.
type AddressParam struct {
	Address string `json:"address"`
}

// HashParam is used by journal_get.
type HashParam struct {
	Hash string `json:"hash"`
}

// LimitParam is used by journal_list.
type LimitParam struct {
	Limit int `json:"limit"`
}

// ── Result types ────────────────────────────────────────────────────────

// PrepareResult is returned by every preparing method.
type PrepareResult struct {
	Kind         prepare.Kind      `json:"kind"`
	Hash         string            `json:"hash"`
	Envelope     string            `json:"envelope"`
	Fee          int64             `json:"fee"`
	Raw          prepare.Footprint `json:"raw"`
	Adjusted     prepare.Footprint `json:"adjusted"`
	ReturnValue  interface{}       `json:"return_value,omitempty"`
	LatestLedger uint32            `json:"latest_ledger"`
}

// AccountResult is returned by account_get.
type AccountResult struct {
	ID           string `json:"id"`
	Sequence     int64  `json:"sequence"`
	NextSequence int64  `json:"next_sequence"`
}

// JournalListResult is returned by journal_list.
type JournalListResult struct {
	Records []*journal.Record `json:"records"`
	Count   int               `json:"count"`
}
