package prepare

import (
	"bytes"
	"testing"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContractID(t *testing.T) string {
	t.Helper()
	id, err := strkey.Encode(strkey.VersionByteContract, bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return id
}

func TestNewInvocation(t *testing.T) {
	id := testContractID(t)
	arg := xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: ptrU32(7)}

	op, err := NewInvocation(id, "set_fee", arg)
	require.NoError(t, err)

	ic := op.HostFunction.InvokeContract
	require.NotNil(t, ic)
	assert.Equal(t, xdr.ScSymbol("set_fee"), ic.FunctionName)
	require.Len(t, ic.Args, 1)
	assert.Equal(t, uint32(7), uint32(*ic.Args[0].U32))
	require.NotNil(t, ic.ContractAddress.ContractId)
	assert.Equal(t, byte(0x42), ic.ContractAddress.ContractId[31])
	assert.True(t, isSorobanOp(op))
}

func TestNewInvocation_NoArgs(t *testing.T) {
	op, err := NewInvocation(testContractID(t), "admin")
	require.NoError(t, err)
	assert.NotNil(t, op.HostFunction.InvokeContract.Args)
	assert.Empty(t, op.HostFunction.InvokeContract.Args)
}

func TestNewInvocation_Invalid(t *testing.T) {
	_, err := NewInvocation("GABC", "admin")
	assert.Error(t, err)

	_, err = NewInvocation(testContractID(t), "")
	assert.Error(t, err)
}

func ptrU32(v uint32) *xdr.Uint32 {
	u := xdr.Uint32(v)
	return &u
}
