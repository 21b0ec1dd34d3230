package scval

import (
	"fmt"
	"math/big"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// ToNative converts a contract value to a plain Go value:
//
//	void            nil
//	bool            bool
//	u32, i32        uint32, int32
//	u64, i64        uint64, int64
//	timepoint       uint64 (unix seconds)
//	duration        uint64 (seconds)
//	u128, i128      *big.Int
//	bytes           []byte
//	string, symbol  string
//	address         string (strkey)
//	vec             []any
//	map             map[string]any, keys rendered with fmt
func ToNative(v xdr.ScVal) (any, error) {
	switch v.Type {
	case xdr.ScValTypeScvVoid:
		return nil, nil
	case xdr.ScValTypeScvBool:
		return *v.B, nil
	case xdr.ScValTypeScvU32:
		return uint32(*v.U32), nil
	case xdr.ScValTypeScvI32:
		return int32(*v.I32), nil
	case xdr.ScValTypeScvU64:
		return uint64(*v.U64), nil
	case xdr.ScValTypeScvI64:
		return int64(*v.I64), nil
	case xdr.ScValTypeScvTimepoint:
		return uint64(*v.Timepoint), nil
	case xdr.ScValTypeScvDuration:
		return uint64(*v.Duration), nil
	case xdr.ScValTypeScvU128:
		hi := new(big.Int).SetUint64(uint64(v.U128.Hi))
		return hi.Lsh(hi, 64).Or(hi, new(big.Int).SetUint64(uint64(v.U128.Lo))), nil
	case xdr.ScValTypeScvI128:
		hi := big.NewInt(int64(v.I128.Hi))
		return hi.Lsh(hi, 64).Add(hi, new(big.Int).SetUint64(uint64(v.I128.Lo))), nil
	case xdr.ScValTypeScvBytes:
		return append([]byte{}, (*v.Bytes)...), nil
	case xdr.ScValTypeScvString:
		return string(*v.Str), nil
	case xdr.ScValTypeScvSymbol:
		return string(*v.Sym), nil
	case xdr.ScValTypeScvAddress:
		return addressString(*v.Address)
	case xdr.ScValTypeScvVec:
		out := []any{}
		if v.Vec == nil || *v.Vec == nil {
			return out, nil
		}
		for i, item := range **v.Vec {
			n, err := ToNative(item)
			if err != nil {
				return nil, fmt.Errorf("vec[%d]: %w", i, err)
			}
			out = append(out, n)
		}
		return out, nil
	case xdr.ScValTypeScvMap:
		out := map[string]any{}
		if v.Map == nil || *v.Map == nil {
			return out, nil
		}
		for _, e := range **v.Map {
			k, err := ToNative(e.Key)
			if err != nil {
				return nil, fmt.Errorf("map key: %w", err)
			}
			val, err := ToNative(e.Val)
			if err != nil {
				return nil, fmt.Errorf("map[%v]: %w", k, err)
			}
			out[fmt.Sprint(k)] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", v.Type)
	}
}

// ParseResult converts a simulated return value. A plain false means the
// footprint data differs from what the contract execution saw and yields
// nil.
func ParseResult(v *xdr.ScVal) (any, error) {
	if v == nil {
		return nil, nil
	}
	if v.Type == xdr.ScValTypeScvBool && v.B != nil && !*v.B {
		return nil, nil
	}
	return ToNative(*v)
}

func addressString(a xdr.ScAddress) (string, error) {
	switch a.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		return a.AccountId.GetAddress()
	case xdr.ScAddressTypeScAddressTypeContract:
		return strkey.Encode(strkey.VersionByteContract, a.ContractId[:])
	default:
		return "", fmt.Errorf("unsupported address type %s", a.Type)
	}
}
