package filestore

import "encoding/json"

// StorageFormat names the on-disk encoding of batch files. Only one format
// exists today; the field exists so the layout can evolve without breaking
// readers of old folders.
type StorageFormat string

// FormatLz4CompressedProto is the only storage format this module writes:
// an LZ4-frame-compressed TransactionsInStorage record.
const FormatLz4CompressedProto StorageFormat = "Lz4CompressedProto"

// RootMetadata is the JSON record at the store root. Version is the next
// version not yet committed; it only advances at folder boundaries.
type RootMetadata struct {
	ChainID       uint64        `json:"chain_id"`
	Version       uint64        `json:"version"`
	StorageFormat StorageFormat `json:"storage_format"`
}

// BatchFile is one entry of a folder's BatchMetadata: the first version in
// the file and the summed encoded length of its transactions (the size
// before LZ4 compression, not the size of the file). It round-trips as a JSON 2-tuple
// (`[first_version, byte_size]`), matching the persisted layout.
type BatchFile struct {
	FirstVersion uint64
	ByteSize     int
}

func (b BatchFile) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{b.FirstVersion, uint64(b.ByteSize)})
}

func (b *BatchFile) UnmarshalJSON(data []byte) error {
	var pair [2]uint64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	b.FirstVersion = pair[0]
	b.ByteSize = int(pair[1])
	return nil
}

// BatchMetadata lists, in first_version order, the batch files covering one
// folder's version range.
type BatchMetadata struct {
	Files []BatchFile `json:"files"`
}

// HighestFileAtOrBefore returns the index of the last file whose
// FirstVersion is <= v, or -1 if none qualifies.
func (m BatchMetadata) HighestFileAtOrBefore(v uint64) int {
	idx := -1
	for i, f := range m.Files {
		if f.FirstVersion <= v {
			idx = i
		} else {
			break
		}
	}
	return idx
}
