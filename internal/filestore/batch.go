package filestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cuemby/txstream/internal/txn"
	"github.com/pierrec/lz4/v4"
)

// TransactionsInStorage is the record persisted in one batch file: a
// contiguous, version-ascending run of transactions starting at
// StartingVersion.
type TransactionsInStorage struct {
	StartingVersion uint64
	Transactions    []txn.Transaction
}

// encodeRaw lays out a TransactionsInStorage record as:
//
//	starting_version (u64) | count (u32) | { version (u64) | len (u32) | bytes }...
//
// This framing is our own — real transaction decoding is an external
// collaborator (§1), so there is no wire format to be bit-compatible with
// beyond what this module itself writes and reads back.
func encodeRaw(b TransactionsInStorage) []byte {
	size := 8 + 4
	for _, t := range b.Transactions {
		size += 8 + 4 + t.EncodedLen()
	}
	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint64(buf, b.StartingVersion)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b.Transactions)))
	for _, t := range b.Transactions {
		buf = binary.BigEndian.AppendUint64(buf, t.Version())
		buf = binary.BigEndian.AppendUint32(buf, uint32(t.EncodedLen()))
		buf = append(buf, t.Bytes()...)
	}
	return buf
}

func decodeRaw(data []byte) (TransactionsInStorage, error) {
	if len(data) < 12 {
		return TransactionsInStorage{}, fmt.Errorf("filestore: truncated batch header")
	}
	startingVersion := binary.BigEndian.Uint64(data[0:8])
	count := binary.BigEndian.Uint32(data[8:12])
	off := 12

	txns := make([]txn.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+12 > len(data) {
			return TransactionsInStorage{}, fmt.Errorf("filestore: truncated record header at entry %d", i)
		}
		version := binary.BigEndian.Uint64(data[off : off+8])
		length := binary.BigEndian.Uint32(data[off+8 : off+12])
		off += 12
		if off+int(length) > len(data) {
			return TransactionsInStorage{}, fmt.Errorf("filestore: truncated payload at entry %d", i)
		}
		txns = append(txns, txn.New(version, data[off:off+int(length)]))
		off += int(length)
	}
	return TransactionsInStorage{StartingVersion: startingVersion, Transactions: txns}, nil
}

// compress LZ4-frame-compresses a TransactionsInStorage record.
func compress(b TransactionsInStorage) ([]byte, error) {
	var out bytes.Buffer
	zw := lz4.NewWriter(&out)
	if _, err := zw.Write(encodeRaw(b)); err != nil {
		return nil, fmt.Errorf("filestore: lz4 compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("filestore: lz4 close: %w", err)
	}
	return out.Bytes(), nil
}

// decompress reverses compress and must round-trip bit-exact.
func decompress(data []byte) (TransactionsInStorage, error) {
	zr := lz4.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(zr)
	if err != nil {
		return TransactionsInStorage{}, fmt.Errorf("filestore: lz4 decompress: %w", err)
	}
	return decodeRaw(raw)
}
