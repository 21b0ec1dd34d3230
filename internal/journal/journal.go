// Package journal keeps a local history of prepared transactions.
//
// The journal is write-mostly: the preparation pipeline never reads it, so
// every build still simulates against the live ledger.
package journal

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/reflector-network/txprep/internal/log"
	"github.com/reflector-network/txprep/internal/storage"
	"github.com/reflector-network/txprep/pkg/prepare"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("journal record not found")

// Key prefixes inside a network namespace.
var (
	prefixRecord      = []byte("r/") // r/<hash hex> -> record JSON
	prefixTime        = []byte("t/") // t/<unix nanos(8)><hash hex> -> hash hex
	prefixFingerprint = []byte("f/") // f/<fingerprint hex>/<hash hex> -> hash hex
)

// Record describes one prepared transaction.
type Record struct {
	Hash         string            `json:"hash"`
	Network      string            `json:"network"`
	Kind         prepare.Kind      `json:"kind"`
	Source       string            `json:"source"`
	Sequence     int64             `json:"sequence"`
	Contract     string            `json:"contract,omitempty"`
	Function     string            `json:"function,omitempty"`
	Envelope     string            `json:"envelope"`
	Fee          int64             `json:"fee"`
	Raw          prepare.Footprint `json:"raw"`
	Adjusted     prepare.Footprint `json:"adjusted"`
	Fingerprint  string            `json:"fingerprint"`
	LatestLedger uint32            `json:"latest_ledger"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Meta is the request context recorded next to a result.
type Meta struct {
	Contract    string
	Function    string
	Fingerprint string
}

// Journal stores records for one network.
type Journal struct {
	mu         sync.Mutex
	db         *storage.PrefixDB
	network    string
	passphrase string
	logger     zerolog.Logger
	now        func() time.Time
}

// New opens the journal namespace for a network inside db.
func New(db storage.DB, network, passphrase string) *Journal {
	return &Journal{
		db:         storage.NewPrefixDB(db, []byte("journal/"+network+"/")),
		network:    network,
		passphrase: passphrase,
		logger:     klog.WithComponent("journal"),
		now:        time.Now,
	}
}

// RecordResult stores a pipeline result and returns the stored record.
func (j *Journal) RecordResult(res *prepare.Result, meta Meta) (*Record, error) {
	if res == nil || res.Transaction == nil {
		return nil, fmt.Errorf("nothing to record")
	}
	hash, err := res.Hash(j.passphrase)
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}
	env, err := res.EnvelopeXDR()
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	src := res.Transaction.SourceAccount()
	rec := &Record{
		Hash:         hash,
		Network:      j.network,
		Kind:         res.Kind,
		Source:       src.AccountID,
		Sequence:     res.Transaction.SequenceNumber(),
		Contract:     meta.Contract,
		Function:     meta.Function,
		Envelope:     env,
		Fee:          res.Transaction.MaxFee(),
		Raw:          res.Raw,
		Adjusted:     res.Adjusted,
		Fingerprint:  meta.Fingerprint,
		LatestLedger: res.LatestLedger,
		CreatedAt:    j.now().UTC(),
	}
	if err := j.Record(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Record stores rec and its indexes atomically.
func (j *Journal) Record(rec *Record) error {
	if !validHash(rec.Hash) {
		return fmt.Errorf("invalid transaction hash %q", rec.Hash)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = j.now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record marshal: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	batch := j.db.NewBatch()
	// Re-recording a hash replaces the earlier entry and its indexes.
	if prev, err := j.Get(rec.Hash); err == nil {
		if err := batch.Delete(timeKey(prev.CreatedAt, prev.Hash)); err != nil {
			return err
		}
		if prev.Fingerprint != "" {
			if err := batch.Delete(fingerprintKey(prev.Fingerprint, prev.Hash)); err != nil {
				return err
			}
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := batch.Put(recordKey(rec.Hash), data); err != nil {
		return err
	}
	if err := batch.Put(timeKey(rec.CreatedAt, rec.Hash), []byte(rec.Hash)); err != nil {
		return err
	}
	if rec.Fingerprint != "" {
		if err := batch.Put(fingerprintKey(rec.Fingerprint, rec.Hash), []byte(rec.Hash)); err != nil {
			return err
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("record put: %w", err)
	}

	j.logger.Debug().
		Str("hash", rec.Hash).
		Str("kind", string(rec.Kind)).
		Str("fn", rec.Function).
		Msg("Recorded transaction")
	return nil
}

// Get returns the record for a transaction hash (hex).
func (j *Journal) Get(hash string) (*Record, error) {
	if !validHash(hash) {
		return nil, fmt.Errorf("invalid transaction hash %q", hash)
	}
	data, err := j.db.Get(recordKey(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("record get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("record unmarshal: %w", err)
	}
	return &rec, nil
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (j *Journal) List(limit int) ([]*Record, error) {
	var hashes []string
	err := j.db.ForEach(prefixTime, func(_, value []byte) error {
		hashes = append(hashes, string(value))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	out := make([]*Record, 0, len(hashes))
	for i := len(hashes) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec, err := j.Get(hashes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ByFingerprint returns every record prepared from the same request.
func (j *Journal) ByFingerprint(fingerprint string) ([]*Record, error) {
	var out []*Record
	prefix := append(append([]byte{}, prefixFingerprint...), fingerprint+"/"...)
	err := j.db.ForEach(prefix, func(_, value []byte) error {
		rec, err := j.Get(string(value))
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear removes every record of this network.
func (j *Journal) Clear() error {
	return j.db.DeleteAll()
}

func recordKey(hash string) []byte {
	return append(append([]byte{}, prefixRecord...), hash...)
}

func timeKey(t time.Time, hash string) []byte {
	key := make([]byte, 0, len(prefixTime)+8+len(hash))
	key = append(key, prefixTime...)
	key = binary.BigEndian.AppendUint64(key, uint64(t.UnixNano()))
	return append(key, hash...)
}

func fingerprintKey(fingerprint, hash string) []byte {
	key := append([]byte{}, prefixFingerprint...)
	key = append(key, fingerprint+"/"...)
	return append(key, hash...)
}

// validHash reports whether s looks like a hex transaction hash.
func validHash(s string) bool {
	b, err := hex.DecodeString(s)
	return err == nil && len(b) == 32
}
