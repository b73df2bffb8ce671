// Package txn defines the opaque transaction record that flows through
// every tier of the pipeline. Decoding the upstream node's wire format is
// out of scope here: a Transaction only needs to expose its version and the
// byte length of its encoded form, both of which size accounting downstream
// relies on.
package txn

// Transaction is a versioned, opaquely-encoded record. The Version is dense
// and monotonically increasing across the whole chain; Bytes is whatever the
// upstream source handed us and is never interpreted by this module.
type Transaction struct {
	version uint64
	data    []byte
}

// New copies data so callers may safely reuse their buffer afterward.
func New(version uint64, data []byte) Transaction {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Transaction{version: version, data: cp}
}

// Version returns the transaction's global version number.
func (t Transaction) Version() uint64 { return t.version }

// EncodedLen returns the size in bytes of the transaction's encoded form.
// All size accounting in the cache, uploader and live tiers uses this, never
// an in-memory footprint estimate.
func (t Transaction) EncodedLen() int { return len(t.data) }

// Bytes returns the encoded payload. The returned slice must not be mutated.
func (t Transaction) Bytes() []byte { return t.data }
