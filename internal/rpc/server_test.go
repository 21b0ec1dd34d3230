package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/reflector-network/txprep/config"
	"github.com/reflector-network/txprep/internal/journal"
	klog "github.com/reflector-network/txprep/internal/log"
	"github.com/reflector-network/txprep/internal/rpcclient"
	"github.com/reflector-network/txprep/internal/storage"
	"github.com/reflector-network/txprep/pkg/prepare"
)

// ── Test helpers ────────────────────────────────────────────────────────

// fakeSimulator answers every simulation with the configured mode.
type fakeSimulator struct {
	mu      sync.Mutex
	mode    string // "", "restore", "error", "badfee"
	retval  xdr.ScVal
	lastOps []txnbuild.Operation
}

func (f *fakeSimulator) setMode(mode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
}

func (f *fakeSimulator) Simulate(_ context.Context, tx *txnbuild.Transaction) (*prepare.SimulationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOps = tx.Operations()

	data := xdr.SorobanTransactionData{
		Resources: xdr.SorobanResources{
			Instructions:  1_500_000,
			DiskReadBytes: 2_000,
			WriteBytes:    300,
		},
		ResourceFee: 60_000,
	}
	enc, err := xdr.MarshalBase64(data)
	if err != nil {
		return nil, err
	}

	switch f.mode {
	case "error":
		return &prepare.SimulationResult{Error: "HostError: contract trapped", LatestLedger: 7}, nil
	case "restore":
		return &prepare.SimulationResult{
			RestorePreamble: &prepare.RestorePreamble{TransactionData: enc, MinResourceFee: "60000"},
			LatestLedger:    7,
		}, nil
	case "badfee":
		return &prepare.SimulationResult{TransactionData: enc, MinResourceFee: "lots", LatestLedger: 7}, nil
	}

	ret, err := xdr.MarshalBase64(f.retval)
	if err != nil {
		return nil, err
	}
	return &prepare.SimulationResult{
		TransactionData: enc,
		MinResourceFee:  "60000",
		Results:         []prepare.HostFunctionResult{{XDR: ret}},
		LatestLedger:    7,
	}, nil
}

func (f *fakeSimulator) lastInvocation(t *testing.T) *txnbuild.InvokeHostFunction {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lastOps) == 0 {
		t.Fatal("nothing simulated")
	}
	op, ok := f.lastOps[0].(*txnbuild.InvokeHostFunction)
	if !ok {
		t.Fatalf("simulated op is %T", f.lastOps[0])
	}
	return op
}

// fakeAccounts serves sequence numbers from a map.
type fakeAccounts map[string]int64

func (f fakeAccounts) GetAccount(_ context.Context, address string) (prepare.Account, error) {
	seq, ok := f[address]
	if !ok {
		return prepare.Account{}, fmt.Errorf("%w: %s", rpcclient.ErrAccountNotFound, address)
	}
	return prepare.Account{ID: address, Sequence: seq}, nil
}

type testEnv struct {
	server     *Server
	sim        *fakeSimulator
	journal    *journal.Journal
	source     string
	contractID string
	url        string
}

func testContractID(t *testing.T) string {
	t.Helper()
	id, err := strkey.Encode(strkey.VersionByteContract, bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("encode contract id: %v", err)
	}
	return id
}

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithConfig(t, config.ServeConfig{MaxBody: datasize.MB})
}

func setupTestEnvWithConfig(t *testing.T, serveCfg config.ServeConfig) *testEnv {
	t.Helper()
	klog.Init("error", false, "")

	source := keypair.Master(network.TestNetworkPassphrase).Address()
	sim := &fakeSimulator{retval: xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: ptrU32(3)}}
	builder := prepare.NewBuilder(prepare.Network{Passphrase: network.TestNetworkPassphrase}, sim)
	j := journal.New(storage.NewMemory(), "testnet", network.TestNetworkPassphrase)
	contractID := testContractID(t)

	srv := New("127.0.0.1:0", builder, fakeAccounts{source: 41}, serveCfg)
	srv.SetJournal(j)
	srv.SetDefaults(contractID, config.BuildConfig{BaseFee: txnbuild.MinBaseFee, Timeout: 5 * time.Minute})
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return &testEnv{
		server:     srv,
		sim:        sim,
		journal:    j,
		source:     source,
		contractID: contractID,
		url:        fmt.Sprintf("http://%s/", srv.Addr()),
	}
}

func ptrU32(v uint32) *xdr.Uint32 {
	u := xdr.Uint32(v)
	return &u
}

func rpcCall(t *testing.T, url, method string, params interface{}) Response {
	t.Helper()
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", method, err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rpcResp
}

func decodeResult(t *testing.T, resp Response, target interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	data, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func expectCode(t *testing.T, resp Response, code int) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected error code %d, got success", code)
	}
	if resp.Error.Code != code {
		t.Errorf("error code = %d, want %d (%s)", resp.Error.Code, code, resp.Error.Message)
	}
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestRPC_TxPrepare(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "tx_prepare", PrepareParam{
		BuildParam: BuildParam{Source: env.source, Memo: "hello"},
		Function:   "lastprice",
		Args:       []string{"u32:5", "sym:BTC"},
	})
	var result PrepareResult
	decodeResult(t, resp, &result)

	if result.Kind != prepare.KindPrepared {
		t.Errorf("kind = %q, want %q", result.Kind, prepare.KindPrepared)
	}
	if len(result.Hash) != 64 {
		t.Errorf("hash = %q, want 64 hex chars", result.Hash)
	}
	if result.Adjusted.Instructions < result.Raw.Instructions {
		t.Errorf("adjusted instructions %d below raw %d", result.Adjusted.Instructions, result.Raw.Instructions)
	}
	if result.Fee <= txnbuild.MinBaseFee {
		t.Errorf("fee = %d, want more than the base fee", result.Fee)
	}
	if fmt.Sprint(result.ReturnValue) != "3" {
		t.Errorf("return value = %v, want 3", result.ReturnValue)
	}
	if result.LatestLedger != 7 {
		t.Errorf("latest ledger = %d, want 7", result.LatestLedger)
	}

	var env2 xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(result.Envelope, &env2); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if got := env2.SeqNum(); got != 42 {
		t.Errorf("sequence = %d, want 42", got)
	}
	if env2.TimeBounds() == nil || env2.TimeBounds().MaxTime == 0 {
		t.Error("expected an upper time bound from the default timeout")
	}

	rec, err := env.journal.Get(result.Hash)
	if err != nil {
		t.Fatalf("journal get: %v", err)
	}
	if rec.Function != "lastprice" || rec.Contract != env.contractID {
		t.Errorf("journal record = %s/%s", rec.Contract, rec.Function)
	}
}

func TestRPC_TxPrepare_Restore(t *testing.T) {
	env := setupTestEnv(t)
	env.sim.setMode("restore")

	resp := rpcCall(t, env.url, "tx_prepare", PrepareParam{
		BuildParam: BuildParam{Source: env.source},
		Function:   "lastprice",
	})
	var result PrepareResult
	decodeResult(t, resp, &result)

	if result.Kind != prepare.KindRestore {
		t.Errorf("kind = %q, want %q", result.Kind, prepare.KindRestore)
	}
	if result.ReturnValue != nil {
		t.Errorf("restore result should carry no return value, got %v", result.ReturnValue)
	}
}

func TestRPC_TxPrepare_SimulationError(t *testing.T) {
	env := setupTestEnv(t)
	env.sim.setMode("error")

	resp := rpcCall(t, env.url, "tx_prepare", PrepareParam{
		BuildParam: BuildParam{Source: env.source},
		Function:   "lastprice",
	})
	expectCode(t, resp, CodeSimulationFailed)
	if !strings.Contains(resp.Error.Message, "contract trapped") {
		t.Errorf("message = %q, want the simulation error", resp.Error.Message)
	}
	data, _ := json.Marshal(resp.Error.Data)
	if !strings.Contains(string(data), string(prepare.StageSimulate)) {
		t.Errorf("error data = %s, want the simulate stage", data)
	}
}

func TestRPC_TxPrepare_FeeExtraction(t *testing.T) {
	env := setupTestEnv(t)
	env.sim.setMode("badfee")

	resp := rpcCall(t, env.url, "tx_prepare", PrepareParam{
		BuildParam: BuildParam{Source: env.source},
		Function:   "lastprice",
	})
	expectCode(t, resp, CodeFeeExtraction)
}

func TestRPC_TxPrepare_InvalidParams(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name   string
		params interface{}
	}{
		{"missing params", nil},
		{"missing function", PrepareParam{BuildParam: BuildParam{Source: env.source}}},
		{"bad source", PrepareParam{BuildParam: BuildParam{Source: "GXYZ"}, Function: "f"}},
		{"bad contract", PrepareParam{BuildParam: BuildParam{Source: env.source, ContractID: "CABC"}, Function: "f"}},
		{"bad arg", PrepareParam{BuildParam: BuildParam{Source: env.source}, Function: "f", Args: []string{"u32:-1"}}},
		{"negative fee", PrepareParam{BuildParam: BuildParam{Source: env.source, BaseFee: -1}, Function: "f"}},
		{"fee below minimum", PrepareParam{BuildParam: BuildParam{Source: env.source, BaseFee: 50}, Function: "f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rpcCall(t, env.url, "tx_prepare", tt.params)
			expectCode(t, resp, CodeInvalidParams)
		})
	}
}

func TestRPC_TxPrepare_UnknownAccount(t *testing.T) {
	env := setupTestEnv(t)

	other := keypair.MustRandom().Address()
	resp := rpcCall(t, env.url, "tx_prepare", PrepareParam{
		BuildParam: BuildParam{Source: other},
		Function:   "lastprice",
	})
	expectCode(t, resp, CodeNotFound)
}

func TestRPC_ContractVersion(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "contract_version", BuildParam{Source: env.source})
	var result PrepareResult
	decodeResult(t, resp, &result)

	op := env.sim.lastInvocation(t)
	if got := string(op.HostFunction.InvokeContract.FunctionName); got != "version" {
		t.Errorf("function = %q, want version", got)
	}
}

func TestRPC_ContractAdmin(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "contract_admin", BuildParam{Source: env.source})
	var result PrepareResult
	decodeResult(t, resp, &result)

	op := env.sim.lastInvocation(t)
	if got := string(op.HostFunction.InvokeContract.FunctionName); got != "admin" {
		t.Errorf("function = %q, want admin", got)
	}
}

func TestRPC_ContractUpdate(t *testing.T) {
	env := setupTestEnv(t)
	admin := keypair.MustRandom().Address()

	resp := rpcCall(t, env.url, "contract_update", UpdateParam{
		BuildParam: BuildParam{Source: env.source},
		Admin:      admin,
		WasmHash:   strings.Repeat("ab", 32),
	})
	var result PrepareResult
	decodeResult(t, resp, &result)

	op := env.sim.lastInvocation(t)
	if op.SourceAccount != admin {
		t.Errorf("op source = %q, want admin %q", op.SourceAccount, admin)
	}

	resp = rpcCall(t, env.url, "contract_update", UpdateParam{
		BuildParam: BuildParam{Source: env.source},
		Admin:      admin,
		WasmHash:   "abcd",
	})
	expectCode(t, resp, CodeInvalidParams)

	resp = rpcCall(t, env.url, "contract_update", UpdateParam{
		BuildParam: BuildParam{Source: env.source},
		WasmHash:   strings.Repeat("ab", 32),
	})
	expectCode(t, resp, CodeInvalidParams)
}

func TestRPC_AccountGet(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "account_get", AddressParam{Address: env.source})
	var result AccountResult
	decodeResult(t, resp, &result)
	if result.Sequence != 41 || result.NextSequence != 42 {
		t.Errorf("sequence = %d/%d, want 41/42", result.Sequence, result.NextSequence)
	}

	resp = rpcCall(t, env.url, "account_get", AddressParam{Address: "xyz"})
	expectCode(t, resp, CodeInvalidParams)

	resp = rpcCall(t, env.url, "account_get", AddressParam{Address: keypair.MustRandom().Address()})
	expectCode(t, resp, CodeNotFound)
}

func TestRPC_JournalListAndGet(t *testing.T) {
	env := setupTestEnv(t)

	var hashes []string
	for _, memo := range []string{"one", "two"} {
		resp := rpcCall(t, env.url, "tx_prepare", PrepareParam{
			BuildParam: BuildParam{Source: env.source, Memo: memo},
			Function:   "lastprice",
		})
		var result PrepareResult
		decodeResult(t, resp, &result)
		hashes = append(hashes, result.Hash)
	}

	resp := rpcCall(t, env.url, "journal_list", nil)
	var list JournalListResult
	decodeResult(t, resp, &list)
	if list.Count != 2 {
		t.Fatalf("count = %d, want 2", list.Count)
	}

	resp = rpcCall(t, env.url, "journal_list", LimitParam{Limit: 1})
	decodeResult(t, resp, &list)
	if list.Count != 1 {
		t.Errorf("limited count = %d, want 1", list.Count)
	}

	resp = rpcCall(t, env.url, "journal_get", HashParam{Hash: hashes[0]})
	var rec journal.Record
	decodeResult(t, resp, &rec)
	if rec.Hash != hashes[0] {
		t.Errorf("hash = %q, want %q", rec.Hash, hashes[0])
	}

	resp = rpcCall(t, env.url, "journal_get", HashParam{Hash: strings.Repeat("0", 64)})
	expectCode(t, resp, CodeNotFound)

	resp = rpcCall(t, env.url, "journal_get", HashParam{Hash: "nothex"})
	expectCode(t, resp, CodeInvalidParams)
}

func TestRPC_Journal_Disabled(t *testing.T) {
	klog.Init("error", false, "")
	builder := prepare.NewBuilder(prepare.Network{Passphrase: network.TestNetworkPassphrase}, &fakeSimulator{})
	srv := New("127.0.0.1:0", builder, fakeAccounts{}, config.ServeConfig{})
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	resp := rpcCall(t, fmt.Sprintf("http://%s/", srv.Addr()), "journal_list", nil)
	expectCode(t, resp, CodeNotFound)
}

func TestRPC_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "nonexistent_method", nil)
	expectCode(t, resp, CodeMethodNotFound)
}

func TestRPC_InvalidJSON(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Post(env.url, "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)
	expectCode(t, rpcResp, CodeParseError)
}

func TestRPC_WrongVersion(t *testing.T) {
	env := setupTestEnv(t)

	body := []byte(`{"jsonrpc":"1.0","method":"account_get","id":1}`)
	resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)
	expectCode(t, rpcResp, CodeInvalidRequest)
}

func TestRPC_GetMethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)
	expectCode(t, rpcResp, CodeInvalidRequest)
}

func TestRPC_BodyTooLarge(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.ServeConfig{MaxBody: 256 * datasize.B})

	resp := rpcCall(t, env.url, "tx_prepare", PrepareParam{
		BuildParam: BuildParam{Source: env.source, Memo: strings.Repeat("x", 512)},
		Function:   "lastprice",
	})
	expectCode(t, resp, CodeInvalidRequest)
}

// --- IP Filtering ---

func TestRPC_IPFilter_Allowed(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.ServeConfig{
		AllowedIPs: []string{"127.0.0.1"},
	})

	resp := rpcCall(t, env.url, "account_get", AddressParam{Address: env.source})
	if resp.Error != nil {
		t.Errorf("expected success for 127.0.0.1, got error: %s", resp.Error.Message)
	}
}

func TestRPC_IPFilter_Blocked(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.ServeConfig{
		AllowedIPs: []string{"10.0.0.0/8"},
	})

	req := Request{JSONRPC: "2.0", Method: "account_get", ID: 1}
	body, _ := json.Marshal(req)
	resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

// --- CORS ---

func TestRPC_CORS_SpecificOrigin(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.ServeConfig{
		CORSOrigins: []string{"http://myapp.com"},
	})

	post := func(origin string) *http.Response {
		body, _ := json.Marshal(Request{JSONRPC: "2.0", Method: "journal_list", ID: 1})
		httpReq, _ := http.NewRequest("POST", env.url, bytes.NewReader(body))
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(httpReq)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	if got := post("http://myapp.com").Header.Get("Access-Control-Allow-Origin"); got != "http://myapp.com" {
		t.Errorf("CORS origin = %q, want %q", got, "http://myapp.com")
	}
	if got := post("http://evil.com").Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("non-matching origin should have no CORS header, got %q", got)
	}
}

func TestRPC_CORS_Preflight(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.ServeConfig{
		CORSOrigins: []string{"*"},
	})

	httpReq, _ := http.NewRequest("OPTIONS", env.url, nil)
	httpReq.Header.Set("Origin", "http://example.com")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("preflight should allow any origin")
	}
}
