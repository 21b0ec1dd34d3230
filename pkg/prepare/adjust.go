package prepare

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stellar/go/xdr"
)

// Adjusted is a successful simulation with its resource section padded.
type Adjusted struct {
	// Data is a decoded copy of the simulated resource section, mutated in
	// place with the padded figures.
	Data     xdr.SorobanTransactionData
	Raw      Footprint
	Adjusted Footprint
	// Auth holds the authorization entries recorded by the simulation.
	Auth        []xdr.SorobanAuthorizationEntry
	ReturnValue *xdr.ScVal
}

// Adjust pads a successful simulation result. The resource fee becomes
// max(RoundValue(minResourceFee), MinResourceFee); instructions, read bytes
// and write bytes are each padded independently. sim itself is not modified.
func Adjust(sim *SimulationResult) (*Adjusted, error) {
	if sim == nil {
		return nil, stageErr(StageAdjust, errors.New("simulation result is missing"))
	}

	rawFee, err := parseFee(sim.MinResourceFee)
	if err != nil {
		return nil, feeErr(StageAdjust, err)
	}

	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(sim.TransactionData, &data); err != nil {
		return nil, stageErr(StageAdjust, fmt.Errorf("decode transaction data: %w", err))
	}

	raw := footprintOf(data)
	raw.ResourceFee = int64(rawFee)

	adjusted := Footprint{
		Instructions: RoundUint32(raw.Instructions),
		ReadBytes:    RoundUint32(raw.ReadBytes),
		WriteBytes:   RoundUint32(raw.WriteBytes),
		ResourceFee:  ResourceFee(rawFee),
	}

	data.ResourceFee = xdr.Int64(adjusted.ResourceFee)
	data.Resources.Instructions = xdr.Uint32(adjusted.Instructions)
	data.Resources.DiskReadBytes = xdr.Uint32(adjusted.ReadBytes)
	data.Resources.WriteBytes = xdr.Uint32(adjusted.WriteBytes)

	out := &Adjusted{Data: data, Raw: raw, Adjusted: adjusted}

	if len(sim.Results) > 0 {
		first := sim.Results[0]
		for i, a := range first.Auth {
			var entry xdr.SorobanAuthorizationEntry
			if err := xdr.SafeUnmarshalBase64(a, &entry); err != nil {
				return nil, stageErr(StageAdjust, fmt.Errorf("decode auth entry %d: %w", i, err))
			}
			out.Auth = append(out.Auth, entry)
		}
		if first.XDR != "" {
			var val xdr.ScVal
			if err := xdr.SafeUnmarshalBase64(first.XDR, &val); err != nil {
				return nil, stageErr(StageAdjust, fmt.Errorf("decode return value: %w", err))
			}
			out.ReturnValue = &val
		}
	}

	return out, nil
}

// parseFee interprets a simulated fee figure. Anything that is not a finite,
// non-negative number is rejected.
func parseFee(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("resource fee %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("resource fee %q is not a usable number", s)
	}
	return v, nil
}
