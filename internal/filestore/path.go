package filestore

import (
	"path"
	"strconv"
)

// NumTxnsPerFolder is the number of versions grouped into one folder of the
// file store.
const NumTxnsPerFolder = 10000

// RootMetadataPath is the path of the root metadata file relative to the
// store root.
const RootMetadataPath = "metadata.json"

// FolderForVersion returns the folder index that contains version v.
func FolderForVersion(v uint64) uint64 { return v / NumTxnsPerFolder }

// PathForVersion returns the batch-file path for the file whose first
// transaction is at version v.
func PathForVersion(v uint64) string {
	folder := FolderForVersion(v)
	return path.Join(strconv.FormatUint(folder, 10), strconv.FormatUint(v, 10))
}

// PathForBatchMetadata returns the BatchMetadata path for the folder that
// contains version v.
func PathForBatchMetadata(v uint64) string {
	folder := FolderForVersion(v)
	return path.Join(strconv.FormatUint(folder, 10), "metadata.json")
}
