// Package filestore lays out, serializes, compresses and parses batch
// files, per-folder BatchMetadata, and the root metadata record, on top of
// a blobstore.Store. It is the one place that must produce bit-exact
// persisted artifacts across process restarts.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/txstream/internal/blobstore"
	"github.com/cuemby/txstream/internal/txerrors"
	"github.com/cuemby/txstream/internal/txn"
)

// retryBackoff is the fixed per-file-read retry delay (§4.2).
const retryBackoff = 10 * time.Millisecond

// RetryObserver is notified once per retried blob-store read, tagged by the
// backing store's Tag(). internal/obsmetrics implements this.
type RetryObserver interface {
	ObserveRetry(storeTag string)
}

type noopObserver struct{}

func (noopObserver) ObserveRetry(string) {}

// Codec reads and writes the persisted file-store layout described in
// spec §6: root metadata.json, per-folder metadata.json, and batch files.
type Codec struct {
	store    blobstore.Store
	observer RetryObserver
}

// NewCodec builds a Codec over store. observer may be nil.
func NewCodec(store blobstore.Store, observer RetryObserver) *Codec {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Codec{store: store, observer: observer}
}

func (c *Codec) withRetry(ctx context.Context, retries int, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == retries {
			break
		}
		c.observer.ObserveRetry(c.store.Tag())
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// WriteBatch persists a batch file at path_for_version(batch.StartingVersion).
func (c *Codec) WriteBatch(ctx context.Context, batch TransactionsInStorage) error {
	data, err := compress(batch)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, PathForVersion(batch.StartingVersion), data)
}

// ReadBatch reads and decompresses the batch file starting at firstVersion.
func (c *Codec) ReadBatch(ctx context.Context, firstVersion uint64, retries int) (TransactionsInStorage, error) {
	var out TransactionsInStorage
	err := c.withRetry(ctx, retries, func() error {
		data, err := c.store.Get(ctx, PathForVersion(firstVersion))
		if err != nil {
			return err
		}
		decoded, err := decompress(data)
		if err != nil {
			return err
		}
		out = decoded
		return nil
	})
	return out, err
}

// WriteBatchMetadata writes a folder's BatchMetadata.
func (c *Codec) WriteBatchMetadata(ctx context.Context, folder uint64, bm BatchMetadata) error {
	data, err := json.Marshal(bm)
	if err != nil {
		return fmt.Errorf("filestore: marshal batch metadata: %w", err)
	}
	return c.store.Put(ctx, folderMetadataPath(folder), data)
}

// ReadBatchMetadata reads a folder's BatchMetadata.
func (c *Codec) ReadBatchMetadata(ctx context.Context, folder uint64, retries int) (BatchMetadata, error) {
	var out BatchMetadata
	err := c.withRetry(ctx, retries, func() error {
		data, err := c.store.Get(ctx, folderMetadataPath(folder))
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &out)
	})
	return out, err
}

// WriteRootMetadata writes the root metadata.json. Callers only invoke this
// at folder boundaries (§4.4's invariant).
func (c *Codec) WriteRootMetadata(ctx context.Context, rm RootMetadata) error {
	data, err := json.Marshal(rm)
	if err != nil {
		return fmt.Errorf("filestore: marshal root metadata: %w", err)
	}
	return c.store.Put(ctx, RootMetadataPath, data)
}

// ReadRootMetadata reads root metadata.json. found is false if it has never
// been written (a fresh store).
func (c *Codec) ReadRootMetadata(ctx context.Context) (rm RootMetadata, found bool, err error) {
	data, err := c.store.Get(ctx, RootMetadataPath)
	if errors.Is(err, blobstore.ErrNotFound) {
		return RootMetadata{}, false, nil
	}
	if err != nil {
		return RootMetadata{}, false, err
	}
	if err := json.Unmarshal(data, &rm); err != nil {
		return RootMetadata{}, false, fmt.Errorf("filestore: unmarshal root metadata: %w", err)
	}
	return rm, true, nil
}

// GetTransactionBatch locates the folder of v, finds the highest batch file
// whose first_version <= v, and pushes transactions with version >= v,
// crossing at most maxFiles files, onto out. It never crosses a folder
// boundary — the caller re-invokes with the next version to continue.
func (c *Codec) GetTransactionBatch(ctx context.Context, v uint64, retries, maxFiles int, out chan<- txn.Transaction) error {
	folder := FolderForVersion(v)
	bm, err := c.ReadBatchMetadata(ctx, folder, retries)
	if err != nil {
		return fmt.Errorf("filestore: read batch metadata for folder %d: %w", folder, err)
	}

	idx := bm.HighestFileAtOrBefore(v)
	if idx == -1 {
		return txerrors.ErrFileStoreUnavailable
	}

	files := bm.Files[idx:]
	if len(files) > maxFiles {
		files = files[:maxFiles]
	}

	for _, f := range files {
		batch, err := c.ReadBatch(ctx, f.FirstVersion, retries)
		if err != nil {
			return fmt.Errorf("filestore: read batch at version %d: %w", f.FirstVersion, err)
		}
		for _, t := range batch.Transactions {
			if t.Version() < v {
				continue
			}
			select {
			case out <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func folderMetadataPath(folder uint64) string {
	return PathForBatchMetadata(folder * NumTxnsPerFolder)
}
