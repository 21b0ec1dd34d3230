package scval

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/stellar/go/xdr"
)

// ArgTypes lists the prefixes accepted by ParseArg.
var ArgTypes = []string{"sym", "str", "u32", "i32", "u64", "i64", "u128", "i128", "bool", "bytes", "addr", "xdr"}

// ParseArg parses a typed argument of the form "type:value", e.g.
// "u32:10", "sym:XLM", "addr:GABC...", "bytes:deadbeef" or "xdr:<base64 ScVal>".
func ParseArg(s string) (xdr.ScVal, error) {
	typ, val, ok := strings.Cut(s, ":")
	if !ok {
		return xdr.ScVal{}, fmt.Errorf("argument %q: expected type:value", s)
	}
	v, err := parseTyped(strings.ToLower(strings.TrimSpace(typ)), val)
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("argument %q: %w", s, err)
	}
	return v, nil
}

// ParseArgs parses each argument with ParseArg.
func ParseArgs(args []string) ([]xdr.ScVal, error) {
	out := make([]xdr.ScVal, 0, len(args))
	for _, a := range args {
		v, err := ParseArg(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseTyped(typ, val string) (xdr.ScVal, error) {
	switch typ {
	case "sym":
		if val == "" {
			return xdr.ScVal{}, fmt.Errorf("empty symbol")
		}
		return Symbol(val), nil
	case "str":
		return String(val), nil
	case "u32":
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return xdr.ScVal{}, err
		}
		return U32(uint32(n)), nil
	case "i32":
		n, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return xdr.ScVal{}, err
		}
		return I32(int32(n)), nil
	case "u64":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return xdr.ScVal{}, err
		}
		return U64(n), nil
	case "i64":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return xdr.ScVal{}, err
		}
		return I64(n), nil
	case "u128":
		return parseU128(val)
	case "i128":
		return parseI128(val)
	case "bool":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return xdr.ScVal{}, err
		}
		return Bool(b), nil
	case "bytes":
		b, err := hex.DecodeString(strings.TrimPrefix(val, "0x"))
		if err != nil {
			return xdr.ScVal{}, fmt.Errorf("invalid hex: %w", err)
		}
		return Bytes(b), nil
	case "addr":
		return Address(val)
	case "xdr":
		var v xdr.ScVal
		if err := xdr.SafeUnmarshalBase64(val, &v); err != nil {
			return xdr.ScVal{}, fmt.Errorf("invalid ScVal xdr: %w", err)
		}
		return v, nil
	default:
		return xdr.ScVal{}, fmt.Errorf("unknown type %q (want one of %s)", typ, strings.Join(ArgTypes, ", "))
	}
}

var (
	maxU128   = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	minI128   = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxI128   = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	lowMask64 = new(big.Int).SetUint64(^uint64(0))
)

func parseBig(val string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(val, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", val)
	}
	return n, nil
}

func parseU128(val string) (xdr.ScVal, error) {
	n, err := parseBig(val)
	if err != nil {
		return xdr.ScVal{}, err
	}
	if n.Sign() < 0 || n.Cmp(maxU128) > 0 {
		return xdr.ScVal{}, fmt.Errorf("%s out of u128 range", val)
	}
	lo := new(big.Int).And(n, lowMask64).Uint64()
	hi := new(big.Int).Rsh(n, 64).Uint64()
	parts := xdr.UInt128Parts{Hi: xdr.Uint64(hi), Lo: xdr.Uint64(lo)}
	return xdr.ScVal{Type: xdr.ScValTypeScvU128, U128: &parts}, nil
}

func parseI128(val string) (xdr.ScVal, error) {
	n, err := parseBig(val)
	if err != nil {
		return xdr.ScVal{}, err
	}
	if n.Cmp(minI128) < 0 || n.Cmp(maxI128) > 0 {
		return xdr.ScVal{}, fmt.Errorf("%s out of i128 range", val)
	}
	// big.Int bit operations use two's complement for negative values.
	lo := new(big.Int).And(n, lowMask64)
	hi := new(big.Int).Rsh(n, 64).Int64()
	parts := xdr.Int128Parts{Hi: xdr.Int64(hi), Lo: xdr.Uint64(lo.Uint64())}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}, nil
}
