package prepare

import (
	"fmt"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// NewInvocation builds the invoke-contract operation calling function on the
// contract identified by contractID (a C... strkey).
func NewInvocation(contractID, function string, args ...xdr.ScVal) (*txnbuild.InvokeHostFunction, error) {
	addr, err := ContractAddress(contractID)
	if err != nil {
		return nil, err
	}
	if function == "" {
		return nil, fmt.Errorf("empty function name")
	}
	if args == nil {
		args = []xdr.ScVal{}
	}
	return &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: addr,
				FunctionName:    xdr.ScSymbol(function),
				Args:            xdr.ScVec(args),
			},
		},
	}, nil
}

// ContractAddress decodes a contract strkey into its ScAddress.
func ContractAddress(contractID string) (xdr.ScAddress, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, contractID)
	if err != nil {
		return xdr.ScAddress{}, fmt.Errorf("invalid contract id %q: %w", contractID, err)
	}
	var cid xdr.ContractId
	copy(cid[:], raw)
	return xdr.ScAddress{
		Type:       xdr.ScAddressTypeScAddressTypeContract,
		ContractId: &cid,
	}, nil
}
