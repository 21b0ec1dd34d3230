package prepare

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var testNetwork = Network{Passphrase: network.TestNetworkPassphrase, RPCURL: "http://localhost:8000/rpc"}

type fakeSimulator struct {
	result *SimulationResult
	err    error
	calls  atomic.Int32
}

func (f *fakeSimulator) Simulate(_ context.Context, _ *txnbuild.Transaction) (*SimulationResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	// Hand out a copy so concurrent builds never share one result.
	cp := *f.result
	return &cp, nil
}

func testAccount() Account {
	return Account{ID: keypair.Master(network.TestNetworkPassphrase).Address(), Sequence: 5}
}

func testInvocation(fn string) *txnbuild.InvokeHostFunction {
	cid := xdr.ContractId{0x0a, 0x0b, 0x0c}
	return &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: xdr.ScAddress{
					Type:       xdr.ScAddressTypeScAddressTypeContract,
					ContractId: &cid,
				},
				FunctionName: xdr.ScSymbol(fn),
			},
		},
	}
}

func testTransactionData(t *testing.T, instructions, readBytes, writeBytes uint32, fee int64) string {
	t.Helper()
	data := xdr.SorobanTransactionData{
		Resources: xdr.SorobanResources{
			Instructions:  xdr.Uint32(instructions),
			DiskReadBytes: xdr.Uint32(readBytes),
			WriteBytes:    xdr.Uint32(writeBytes),
		},
		ResourceFee: xdr.Int64(fee),
	}
	s, err := xdr.MarshalBase64(data)
	require.NoError(t, err)
	return s
}

func successResult(t *testing.T, rawFee string) *SimulationResult {
	t.Helper()
	return &SimulationResult{
		TransactionData: testTransactionData(t, 1_500_000, 2_000, 500, 4_000_000),
		MinResourceFee:  rawFee,
		LatestLedger:    4242,
	}
}

func sorobanData(t *testing.T, tx *txnbuild.Transaction) *xdr.SorobanTransactionData {
	t.Helper()
	env := tx.ToXDR()
	require.NotNil(t, env.V1)
	require.NotNil(t, env.V1.Tx.Ext.SorobanData)
	return env.V1.Tx.Ext.SorobanData
}

func TestBuild_EndToEnd(t *testing.T) {
	sim := &fakeSimulator{result: successResult(t, "4000000")}
	b := NewBuilder(testNetwork, sim)

	res, err := b.Build(context.Background(), testAccount(), testInvocation("increment"), &BuildOptions{BaseFee: 100})
	require.NoError(t, err)
	require.Equal(t, KindPrepared, res.Kind)
	assert.Equal(t, int32(1), sim.calls.Load())

	assert.Equal(t, Footprint{Instructions: 1_500_000, ReadBytes: 2_000, WriteBytes: 500, ResourceFee: 4_000_000}, res.Raw)
	assert.Equal(t, Footprint{Instructions: 3_000_000, ReadBytes: 4_000, WriteBytes: 1_000, ResourceFee: MinResourceFee}, res.Adjusted)

	tx := res.Transaction
	assert.Equal(t, int64(100+10_000_000), tx.MaxFee())
	assert.Equal(t, xdr.Uint32(100+10_000_000), tx.ToXDR().V1.Tx.Fee)
	assert.Equal(t, int64(6), tx.SequenceNumber())
	require.Len(t, tx.Operations(), 1)
	_, ok := tx.Operations()[0].(*txnbuild.InvokeHostFunction)
	assert.True(t, ok)

	data := sorobanData(t, tx)
	assert.Equal(t, xdr.Int64(10_000_000), data.ResourceFee)
	assert.Equal(t, xdr.Uint32(3_000_000), data.Resources.Instructions)
	assert.Equal(t, xdr.Uint32(4_000), data.Resources.DiskReadBytes)
	assert.Equal(t, xdr.Uint32(1_000), data.Resources.WriteBytes)
	assert.Equal(t, uint32(4242), res.LatestLedger)
}

func TestBuild_FeeAboveFloor(t *testing.T) {
	sim := &fakeSimulator{result: successResult(t, "32000000")}
	res, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), &BuildOptions{BaseFee: 200})
	require.NoError(t, err)
	assert.Equal(t, int64(60_000_000), res.Adjusted.ResourceFee)
	assert.Equal(t, int64(200+60_000_000), res.Transaction.MaxFee())
	assert.Equal(t, xdr.Uint32(200+60_000_000), res.Transaction.ToXDR().V1.Tx.Fee)
}

func TestBuild_FeeBelowFloorIsExactlyFloor(t *testing.T) {
	for _, raw := range []string{"0", "1", "58181", "4999999"} {
		sim := &fakeSimulator{result: successResult(t, raw)}
		res, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), &BuildOptions{BaseFee: 100})
		require.NoError(t, err, raw)
		assert.Equal(t, MinResourceFee, res.Adjusted.ResourceFee, raw)
		assert.Equal(t, xdr.Int64(MinResourceFee), sorobanData(t, res.Transaction).ResourceFee, raw)
	}
}

func TestBuild_RestorePath(t *testing.T) {
	preambleData := testTransactionData(t, 0, 1_234, 1_234, 123_456)
	sim := &fakeSimulator{result: &SimulationResult{
		RestorePreamble: &RestorePreamble{TransactionData: preambleData, MinResourceFee: "123456"},
		// Success fields that would fail the adjuster if it ran.
		TransactionData: "not-xdr",
		MinResourceFee:  "NaN",
	}}

	res, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), &BuildOptions{BaseFee: 100})
	require.NoError(t, err)
	require.Equal(t, KindRestore, res.Kind)

	tx := res.Transaction
	require.Len(t, tx.Operations(), 1)
	_, ok := tx.Operations()[0].(*txnbuild.RestoreFootprint)
	assert.True(t, ok, "sole operation must be RestoreFootprint, got %T", tx.Operations()[0])

	// RoundValue(100 + 123456) = 200000.
	assert.Equal(t, int64(200_000), tx.MaxFee())
	assert.Equal(t, xdr.Uint32(200_000), tx.ToXDR().V1.Tx.Fee)
	assert.Equal(t, int64(6), tx.SequenceNumber())

	data := sorobanData(t, tx)
	assert.Equal(t, xdr.Int64(123_456), data.ResourceFee, "preamble data must be attached unchanged")
	assert.Equal(t, xdr.Uint32(1_234), data.Resources.DiskReadBytes)
	assert.Equal(t, res.Raw, res.Adjusted)
}

func TestBuildRestore_FeeBelowPreambleResourceFee(t *testing.T) {
	preamble := &RestorePreamble{
		TransactionData: testTransactionData(t, 0, 10, 10, 500_000),
		MinResourceFee:  "100",
	}
	tx, err := BuildRestore(preamble, testAccount(), &BuildOptions{BaseFee: 100})
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, ErrFeeExtraction)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, StageRestore, be.Stage)
}

func TestBuildRestore_MemoTooLong(t *testing.T) {
	preamble := &RestorePreamble{
		TransactionData: testTransactionData(t, 0, 10, 10, 100),
		MinResourceFee:  "100",
	}
	_, err := BuildRestore(preamble, testAccount(), &BuildOptions{BaseFee: 100, Memo: "this memo is longer than twenty-eight bytes"})
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestBuild_NilOptions(t *testing.T) {
	sim := &fakeSimulator{result: successResult(t, "100")}
	res, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, int32(0), sim.calls.Load(), "no simulation on precondition failure")

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, StageAssemble, be.Stage)
}

func TestBuild_Preconditions(t *testing.T) {
	tests := []struct {
		name string
		acc  Account
		op   txnbuild.Operation
		opts *BuildOptions
	}{
		{"base fee below minimum", testAccount(), testInvocation("f"), &BuildOptions{BaseFee: 10}},
		{"missing account", Account{}, testInvocation("f"), &BuildOptions{BaseFee: 100}},
		{"missing operation", testAccount(), nil, &BuildOptions{BaseFee: 100}},
		{"classic operation", testAccount(), &txnbuild.BumpSequence{BumpTo: 10}, &BuildOptions{BaseFee: 100}},
		{"memo too long", testAccount(), testInvocation("f"), &BuildOptions{BaseFee: 100, Memo: "this memo is longer than twenty-eight bytes"}},
		{"inverted time bounds", testAccount(), testInvocation("f"), &BuildOptions{BaseFee: 100, TimeBounds: &TimeBounds{MinTime: 20, MaxTime: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := &fakeSimulator{result: successResult(t, "100")}
			_, err := NewBuilder(testNetwork, sim).Build(context.Background(), tt.acc, tt.op, tt.opts)
			assert.ErrorIs(t, err, ErrPrecondition)
			assert.Equal(t, int32(0), sim.calls.Load())
		})
	}
}

func TestBuild_SimulationError(t *testing.T) {
	sim := &fakeSimulator{result: &SimulationResult{Error: "HostError: Error(Contract, #3)"}}
	_, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), &BuildOptions{BaseFee: 100})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSimulation)
	assert.NotErrorIs(t, err, ErrFeeExtraction)
	assert.Contains(t, err.Error(), "HostError: Error(Contract, #3)")
}

func TestBuild_TransportErrorIsSimulationError(t *testing.T) {
	transport := errors.New("connection refused")
	sim := &fakeSimulator{err: transport}
	_, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), &BuildOptions{BaseFee: 100})
	assert.ErrorIs(t, err, ErrSimulation)
	assert.ErrorIs(t, err, transport)
	assert.Equal(t, int32(1), sim.calls.Load(), "no retry")
}

func TestBuild_FeeExtractionError(t *testing.T) {
	for _, raw := range []string{"", "NaN", "abc", "-5", "Inf"} {
		sim := &fakeSimulator{result: successResult(t, raw)}
		_, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), &BuildOptions{BaseFee: 100})
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, ErrFeeExtraction, raw)
		assert.NotErrorIs(t, err, ErrSimulation, raw)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	opts := &BuildOptions{BaseFee: 100, Memo: "tick", TimeBounds: &TimeBounds{MinTime: 0, MaxTime: 1_900_000_000}}
	var envelopes []string
	for i := 0; i < 3; i++ {
		sim := &fakeSimulator{result: successResult(t, "4000000")}
		res, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), opts)
		require.NoError(t, err)
		env, err := res.EnvelopeXDR()
		require.NoError(t, err)
		envelopes = append(envelopes, env)
	}
	assert.Equal(t, envelopes[0], envelopes[1])
	assert.Equal(t, envelopes[0], envelopes[2])
}

func TestBuild_InputsNotMutated(t *testing.T) {
	acc := testAccount()
	op := testInvocation("increment")
	sim := &fakeSimulator{result: successResult(t, "4000000")}

	_, err := NewBuilder(testNetwork, sim).Build(context.Background(), acc, op, &BuildOptions{BaseFee: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(5), acc.Sequence)
	assert.Equal(t, int32(0), op.Ext.V, "caller operation must not receive the resource section")
	assert.Nil(t, op.Auth)
}

func TestBuild_MemoAndTimeBounds(t *testing.T) {
	sim := &fakeSimulator{result: successResult(t, "4000000")}
	opts := &BuildOptions{BaseFee: 100, Memo: "hello", TimeBounds: &TimeBounds{MinTime: 10, MaxTime: 1_700_000_000}}
	res, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), opts)
	require.NoError(t, err)

	assert.Equal(t, txnbuild.MemoText("hello"), res.Transaction.Memo())
	tb := res.Transaction.Timebounds()
	assert.Equal(t, int64(10), tb.MinTime)
	assert.Equal(t, int64(1_700_000_000), tb.MaxTime)
}

func TestBuild_AttachesSimulatedAuthAndReturnValue(t *testing.T) {
	op := testInvocation("update_contract")
	entry := xdr.SorobanAuthorizationEntry{
		Credentials: xdr.SorobanCredentials{Type: xdr.SorobanCredentialsTypeSorobanCredentialsSourceAccount},
		RootInvocation: xdr.SorobanAuthorizedInvocation{
			Function: xdr.SorobanAuthorizedFunction{
				Type:       xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn,
				ContractFn: op.HostFunction.InvokeContract,
			},
		},
	}
	authXDR, err := xdr.MarshalBase64(entry)
	require.NoError(t, err)
	ver := xdr.Uint32(3)
	retXDR, err := xdr.MarshalBase64(xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &ver})
	require.NoError(t, err)

	result := successResult(t, "4000000")
	result.Results = []HostFunctionResult{{Auth: []string{authXDR}, XDR: retXDR}}
	sim := &fakeSimulator{result: result}

	res, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), op, &BuildOptions{BaseFee: 100})
	require.NoError(t, err)

	invoke := res.Transaction.Operations()[0].(*txnbuild.InvokeHostFunction)
	require.Len(t, invoke.Auth, 1)
	assert.Equal(t, xdr.SorobanCredentialsTypeSorobanCredentialsSourceAccount, invoke.Auth[0].Credentials.Type)

	require.NotNil(t, res.ReturnValue)
	require.NotNil(t, res.ReturnValue.U32)
	assert.Equal(t, xdr.Uint32(3), *res.ReturnValue.U32)
}

func TestBuild_ConcurrentCalls(t *testing.T) {
	sim := &fakeSimulator{result: successResult(t, "4000000")}
	b := NewBuilder(testNetwork, sim)

	var wg sync.WaitGroup
	envs := make([]string, 8)
	for i := range envs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := b.Build(context.Background(), testAccount(), testInvocation("increment"), &BuildOptions{BaseFee: 100})
			if err != nil {
				t.Errorf("build %d: %v", i, err)
				return
			}
			envs[i], _ = res.EnvelopeXDR()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(8), sim.calls.Load())
	for i := 1; i < len(envs); i++ {
		assert.Equal(t, envs[0], envs[i])
	}
}

func TestBuild_TraceSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	sim := &fakeSimulator{result: &SimulationResult{Error: "boom"}}
	_, err := NewBuilder(testNetwork, sim).Build(context.Background(), testAccount(), testInvocation("increment"), &BuildOptions{BaseFee: 100})
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "prepare.Build", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	var events []string
	for _, e := range spans[0].Events() {
		events = append(events, e.Name)
	}
	assert.Contains(t, events, "assembled")
	assert.NotContains(t, events, "simulated")
}
