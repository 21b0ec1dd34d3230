package storage

// PrefixDB wraps a DB and prepends a fixed prefix to all keys. The journal
// uses one per network so that records of different networks never mix.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &PrefixDB{inner: inner, prefix: p}
}

func withPrefix(prefix, key []byte) []byte {
	out := make([]byte, len(prefix)+len(key))
	copy(out, prefix)
	copy(out[len(prefix):], key)
	return out
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(withPrefix(p.prefix, key))
}

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(withPrefix(p.prefix, key), value)
}

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(withPrefix(p.prefix, key))
}

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(withPrefix(p.prefix, key))
}

// ForEach iterates over keys with the given prefix inside this namespace.
// The callback sees keys with the namespace prefix stripped.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return p.inner.ForEach(withPrefix(p.prefix, prefix), func(key, value []byte) error {
		return fn(key[len(p.prefix):], value)
	})
}

// DeleteAll removes every key in this namespace.
func (p *PrefixDB) DeleteAll() error {
	var keys [][]byte
	err := p.inner.ForEach(p.prefix, func(key, _ []byte) error {
		keys = append(keys, append([]byte{}, key...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := p.inner.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the inner DB owns its lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch returns a batch writing into this namespace. It is atomic when
// the inner DB supports batches and applies writes one by one otherwise.
func (p *PrefixDB) NewBatch() Batch {
	if batcher, ok := p.inner.(Batcher); ok {
		return &prefixBatch{inner: batcher.NewBatch(), prefix: p.prefix}
	}
	return &prefixBatch{inner: &directBatch{db: p.inner}, prefix: p.prefix}
}

type prefixBatch struct {
	inner  Batch
	prefix []byte
}

func (pb *prefixBatch) Put(key, value []byte) error {
	return pb.inner.Put(withPrefix(pb.prefix, key), value)
}

func (pb *prefixBatch) Delete(key []byte) error {
	return pb.inner.Delete(withPrefix(pb.prefix, key))
}

func (pb *prefixBatch) Commit() error {
	return pb.inner.Commit()
}

// directBatch buffers writes and applies them individually on Commit.
type directBatch struct {
	db  DB
	ops []memoryOp
}

func (d *directBatch) Put(key, value []byte) error {
	d.ops = append(d.ops, memoryOp{key: string(key), value: append([]byte{}, value...)})
	return nil
}

func (d *directBatch) Delete(key []byte) error {
	d.ops = append(d.ops, memoryOp{key: string(key)})
	return nil
}

func (d *directBatch) Commit() error {
	for _, op := range d.ops {
		var err error
		if op.value == nil {
			err = d.db.Delete([]byte(op.key))
		} else {
			err = d.db.Put([]byte(op.key), op.value)
		}
		if err != nil {
			return err
		}
	}
	d.ops = nil
	return nil
}
