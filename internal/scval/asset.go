// Package scval converts between Go values and Soroban contract values
// (xdr.ScVal).
package scval

import (
	"fmt"
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"

	"github.com/reflector-network/txprep/pkg/prepare"
)

// AssetType discriminates oracle assets.
type AssetType int

const (
	// AssetStellar is a Stellar asset identified by its contract or account address.
	AssetStellar AssetType = 1
	// AssetOther is an off-chain asset identified by a ticker symbol.
	AssetOther AssetType = 2
)

func (t AssetType) String() string {
	switch t {
	case AssetStellar:
		return "Stellar"
	case AssetOther:
		return "Other"
	default:
		return fmt.Sprintf("AssetType(%d)", int(t))
	}
}

// ParseAssetType accepts "stellar", "other" or the numeric form.
func ParseAssetType(s string) (AssetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stellar", "1":
		return AssetStellar, nil
	case "other", "2":
		return AssetOther, nil
	default:
		return 0, fmt.Errorf("invalid asset type %q", s)
	}
}

// Asset is an oracle asset descriptor.
type Asset struct {
	Type AssetType `json:"type"`
	Code string    `json:"code"`
}

// TickerAsset pairs an asset ticker with its price source.
type TickerAsset struct {
	Asset  string `json:"asset"`
	Source string `json:"source"`
}

// AssetScVal encodes an asset as the contract's Asset enum:
// vec[Stellar, address] or vec[Other, symbol].
func AssetScVal(asset Asset) (xdr.ScVal, error) {
	var payload xdr.ScVal
	switch asset.Type {
	case AssetStellar:
		addr, err := Address(asset.Code)
		if err != nil {
			return xdr.ScVal{}, err
		}
		payload = addr
	case AssetOther:
		if asset.Code == "" {
			return xdr.ScVal{}, fmt.Errorf("empty asset code")
		}
		payload = Symbol(asset.Code)
	default:
		return xdr.ScVal{}, fmt.Errorf("invalid asset type %d", int(asset.Type))
	}
	return Vec(Symbol(asset.Type.String()), payload), nil
}

// TickerAssetScVal encodes a ticker asset as map{asset: string, source: string}.
func TickerAssetScVal(t TickerAsset) xdr.ScVal {
	return Map(
		xdr.ScMapEntry{Key: Symbol("asset"), Val: String(t.Asset)},
		xdr.ScMapEntry{Key: Symbol("source"), Val: String(t.Source)},
	)
}

// Symbol returns a symbol value.
func Symbol(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

// String returns a string value.
func String(s string) xdr.ScVal {
	str := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str}
}

// Bytes returns a bytes value holding a copy of b.
func Bytes(b []byte) xdr.ScVal {
	cp := xdr.ScBytes(append([]byte{}, b...))
	return xdr.ScVal{Type: xdr.ScValTypeScvBytes, Bytes: &cp}
}

// Bool returns a boolean value.
func Bool(b bool) xdr.ScVal {
	return xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}
}

// U32 returns an unsigned 32-bit value.
func U32(v uint32) xdr.ScVal {
	u := xdr.Uint32(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}

// I32 returns a signed 32-bit value.
func I32(v int32) xdr.ScVal {
	i := xdr.Int32(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvI32, I32: &i}
}

// U64 returns an unsigned 64-bit value.
func U64(v uint64) xdr.ScVal {
	u := xdr.Uint64(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &u}
}

// I64 returns a signed 64-bit value.
func I64(v int64) xdr.ScVal {
	i := xdr.Int64(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvI64, I64: &i}
}

// Vec returns a vector of the given values.
func Vec(items ...xdr.ScVal) xdr.ScVal {
	vec := xdr.ScVec(items)
	if vec == nil {
		vec = xdr.ScVec{}
	}
	p := &vec
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &p}
}

// Map returns a map holding entries in the given order.
func Map(entries ...xdr.ScMapEntry) xdr.ScVal {
	m := xdr.ScMap(entries)
	if m == nil {
		m = xdr.ScMap{}
	}
	p := &m
	return xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &p}
}

// Address encodes an account (G...) or contract (C...) strkey.
func Address(s string) (xdr.ScVal, error) {
	addr, err := ScAddress(s)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}, nil
}

// ScAddress decodes an account or contract strkey.
func ScAddress(s string) (xdr.ScAddress, error) {
	switch {
	case strkey.IsValidEd25519PublicKey(s):
		var id xdr.AccountId
		if err := id.SetAddress(s); err != nil {
			return xdr.ScAddress{}, err
		}
		return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &id}, nil
	case strings.HasPrefix(s, "C"):
		return prepare.ContractAddress(s)
	default:
		return xdr.ScAddress{}, fmt.Errorf("invalid address %q", s)
	}
}
