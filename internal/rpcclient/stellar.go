package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/reflector-network/txprep/pkg/prepare"
)

// ErrAccountNotFound is returned by GetAccount when the ledger has no entry
// for the address.
var ErrAccountNotFound = errors.New("account not found")

// simulateParams are the parameters of simulateTransaction.
type simulateParams struct {
	Transaction    string          `json:"transaction"`
	ResourceConfig *resourceConfig `json:"resourceConfig,omitempty"`
}

type resourceConfig struct {
	InstructionLeeway uint64 `json:"instructionLeeway"`
}

// simulateResponse mirrors the node's simulateTransaction result. Fees are
// kept raw so that their interpretation stays with the preparation pipeline.
type simulateResponse struct {
	Error           string                       `json:"error,omitempty"`
	TransactionData string                       `json:"transactionData,omitempty"`
	MinResourceFee  json.RawMessage              `json:"minResourceFee,omitempty"`
	RestorePreamble *restorePreamble             `json:"restorePreamble,omitempty"`
	Results         []prepare.HostFunctionResult `json:"results,omitempty"`
	LatestLedger    uint32                       `json:"latestLedger"`
}

type restorePreamble struct {
	TransactionData string          `json:"transactionData"`
	MinResourceFee  json.RawMessage `json:"minResourceFee"`
}

// rawNumber returns the text of a JSON number or string value.
func rawNumber(m json.RawMessage) string {
	s := strings.TrimSpace(string(m))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var out string
		if err := json.Unmarshal(m, &out); err == nil {
			return out
		}
	}
	if s == "null" {
		return ""
	}
	return s
}

// SimulateTransaction runs simulateTransaction for a base64 envelope.
func (c *Client) SimulateTransaction(ctx context.Context, envelopeXDR string) (*prepare.SimulationResult, error) {
	var resp simulateResponse
	if err := c.Call(ctx, "simulateTransaction", simulateParams{Transaction: envelopeXDR}, &resp); err != nil {
		return nil, err
	}
	out := &prepare.SimulationResult{
		Error:           resp.Error,
		TransactionData: resp.TransactionData,
		MinResourceFee:  rawNumber(resp.MinResourceFee),
		Results:         resp.Results,
		LatestLedger:    resp.LatestLedger,
	}
	if resp.RestorePreamble != nil {
		out.RestorePreamble = &prepare.RestorePreamble{
			TransactionData: resp.RestorePreamble.TransactionData,
			MinResourceFee:  rawNumber(resp.RestorePreamble.MinResourceFee),
		}
	}
	return out, nil
}

// Simulate implements prepare.Simulator.
func (c *Client) Simulate(ctx context.Context, tx *txnbuild.Transaction) (*prepare.SimulationResult, error) {
	env, err := tx.Base64()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return c.SimulateTransaction(ctx, env)
}

// LedgerEntry is one entry returned by getLedgerEntries.
type LedgerEntry struct {
	Key                string  `json:"key"`
	XDR                string  `json:"xdr"`
	LastModifiedLedger uint32  `json:"lastModifiedLedgerSeq"`
	LiveUntilLedger    *uint32 `json:"liveUntilLedgerSeq,omitempty"`
}

// LedgerEntries is the getLedgerEntries result.
type LedgerEntries struct {
	Entries      []LedgerEntry `json:"entries"`
	LatestLedger uint32        `json:"latestLedger"`
}

// GetLedgerEntries fetches the current value of the given ledger keys.
func (c *Client) GetLedgerEntries(ctx context.Context, keys ...xdr.LedgerKey) (*LedgerEntries, error) {
	encoded := make([]string, 0, len(keys))
	for i, k := range keys {
		s, err := xdr.MarshalBase64(k)
		if err != nil {
			return nil, fmt.Errorf("encode key %d: %w", i, err)
		}
		encoded = append(encoded, s)
	}
	var out LedgerEntries
	params := map[string]interface{}{"keys": encoded}
	if err := c.Call(ctx, "getLedgerEntries", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccount reads an account's current sequence number from the ledger.
func (c *Client) GetAccount(ctx context.Context, address string) (prepare.Account, error) {
	var accountID xdr.AccountId
	if err := accountID.SetAddress(address); err != nil {
		return prepare.Account{}, fmt.Errorf("invalid account address %q: %w", address, err)
	}
	key := xdr.LedgerKey{
		Type:    xdr.LedgerEntryTypeAccount,
		Account: &xdr.LedgerKeyAccount{AccountId: accountID},
	}
	entries, err := c.GetLedgerEntries(ctx, key)
	if err != nil {
		return prepare.Account{}, err
	}
	if len(entries.Entries) == 0 {
		return prepare.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(entries.Entries[0].XDR, &data); err != nil {
		return prepare.Account{}, fmt.Errorf("decode account entry: %w", err)
	}
	if data.Account == nil {
		return prepare.Account{}, fmt.Errorf("ledger entry for %s is not an account", address)
	}
	return prepare.Account{ID: address, Sequence: int64(data.Account.SeqNum)}, nil
}

// NetworkInfo is the getNetwork result.
type NetworkInfo struct {
	Passphrase      string `json:"passphrase"`
	ProtocolVersion int    `json:"protocolVersion"`
	FriendbotURL    string `json:"friendbotUrl,omitempty"`
}

// GetNetwork returns the node's network passphrase and protocol version.
func (c *Client) GetNetwork(ctx context.Context) (*NetworkInfo, error) {
	var out NetworkInfo
	if err := c.Call(ctx, "getNetwork", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LatestLedger is the getLatestLedger result.
type LatestLedger struct {
	ID              string `json:"id"`
	ProtocolVersion int    `json:"protocolVersion"`
	Sequence        uint32 `json:"sequence"`
}

// GetLatestLedger returns the most recent ledger known to the node.
func (c *Client) GetLatestLedger(ctx context.Context) (*LatestLedger, error) {
	var out LatestLedger
	if err := c.Call(ctx, "getLatestLedger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VersionInfo is the getVersionInfo result.
type VersionInfo struct {
	Version            string `json:"version"`
	CommitHash         string `json:"commitHash"`
	BuildTimestamp     string `json:"buildTimestamp"`
	CaptiveCoreVersion string `json:"captiveCoreVersion"`
	ProtocolVersion    int    `json:"protocolVersion"`
}

// GetVersionInfo returns the node's software version.
func (c *Client) GetVersionInfo(ctx context.Context) (*VersionInfo, error) {
	var out VersionInfo
	if err := c.Call(ctx, "getVersionInfo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckVersion fails when the node reports a version older than minimum.
// An empty minimum disables the check.
func (c *Client) CheckVersion(ctx context.Context, minimum string) (*VersionInfo, error) {
	info, err := c.GetVersionInfo(ctx)
	if err != nil {
		return nil, err
	}
	if minimum == "" {
		return info, nil
	}
	if err := compareVersions(info.Version, minimum); err != nil {
		return info, err
	}
	return info, nil
}

func compareVersions(reported, minimum string) error {
	want, err := version.NewVersion(minimum)
	if err != nil {
		return fmt.Errorf("invalid minimum version %q: %w", minimum, err)
	}
	// Node builds report strings like "23.0.4-6c8a1cf...".
	got, err := version.NewVersion(strings.TrimSpace(reported))
	if err != nil {
		return fmt.Errorf("node reported unparseable version %q: %w", reported, err)
	}
	if got.Core().LessThan(want.Core()) {
		return fmt.Errorf("node version %s is older than required %s", got, want)
	}
	return nil
}
