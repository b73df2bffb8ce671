// Package uploader drains the Manager's in-memory cache into the file
// store in contiguous, folder-aligned batches, advancing the cache's
// file_store_version cursor and the file store's root metadata in lockstep.
package uploader

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/txstream/internal/filestore"
	"github.com/cuemby/txstream/internal/managercache"
	"github.com/cuemby/txstream/internal/txn"
	"github.com/rs/zerolog"
)

// MaxSizePerFile is the size threshold that forces a batch flush even
// mid-folder (§4.4).
const MaxSizePerFile int64 = 20 << 20

// idleBackoff is how long the uploader sleeps when the cache has nothing
// new for it.
const idleBackoff = 100 * time.Millisecond

// FlushObserver is notified after each successful flush. obsmetrics
// implements this to record flush latency.
type FlushObserver interface {
	ObserveFlush(d time.Duration)
}

type noopFlushObserver struct{}

func (noopFlushObserver) ObserveFlush(time.Duration) {}

// Uploader drains a managercache.Cache and writes fixed-size or
// folder-boundary-terminated batch files, keeping RootMetadata and
// per-folder BatchMetadata consistent with what has actually been written.
type Uploader struct {
	cache   *managercache.Cache
	codec   *filestore.Codec
	chainID uint64
	log     zerolog.Logger
	metrics FlushObserver

	maxSizePerFile int64

	version uint64

	buffer     []txn.Transaction
	bufferSize int64
	batchMeta  filestore.BatchMetadata
}

// New builds an Uploader. Call Run to start draining; Run blocks until ctx
// is cancelled or an unrecoverable error occurs, at which point the caller
// (a supervising errgroup) is expected to decide whether to restart it.
func New(cache *managercache.Cache, codec *filestore.Codec, chainID uint64, log zerolog.Logger, metrics FlushObserver) *Uploader {
	if metrics == nil {
		metrics = noopFlushObserver{}
	}
	return &Uploader{
		cache:          cache,
		codec:          codec,
		chainID:        chainID,
		log:            log.With().Str("component", "uploader").Logger(),
		metrics:        metrics,
		maxSizePerFile: MaxSizePerFile,
	}
}

// Run initializes from persisted root metadata (or writes a fresh one at
// version 0) and then loops until ctx is done.
func (u *Uploader) Run(ctx context.Context) error {
	if err := u.init(ctx); err != nil {
		return fmt.Errorf("uploader: init: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		got := u.cache.GetTransactions(u.version, u.maxSizePerFile, true)
		if len(got) == 0 {
			select {
			case <-time.After(idleBackoff):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, t := range got {
			u.buffer = append(u.buffer, t)
			u.bufferSize += int64(t.EncodedLen())
			u.version = t.Version() + 1

			endBatch := (t.Version()+1)%filestore.NumTxnsPerFolder == 0
			if u.bufferSize >= u.maxSizePerFile || endBatch {
				if err := u.flush(ctx, endBatch); err != nil {
					return fmt.Errorf("uploader: flush: %w", err)
				}
			}
		}
	}
}

func (u *Uploader) init(ctx context.Context) error {
	rm, found, err := u.codec.ReadRootMetadata(ctx)
	if err != nil {
		return err
	}
	if !found {
		u.version = 0
		return u.codec.WriteRootMetadata(ctx, filestore.RootMetadata{
			ChainID:       u.chainID,
			Version:       0,
			StorageFormat: filestore.FormatLz4CompressedProto,
		})
	}
	if rm.ChainID != u.chainID {
		return fmt.Errorf("chain id mismatch: root metadata has %d, configured %d", rm.ChainID, u.chainID)
	}
	u.version = rm.Version
	return nil
}

// flush writes the accumulated buffer as one batch file. Compression runs
// inline: the uploader has its own goroutine, so unlike a single shared
// worker-pool thread this never blocks an unrelated task — there is no
// separate blocking-pool hop to arrange.
func (u *Uploader) flush(ctx context.Context, endBatch bool) error {
	if len(u.buffer) == 0 {
		return nil
	}

	firstVersion := u.buffer[0].Version()
	lastVersion := u.buffer[len(u.buffer)-1].Version()

	start := time.Now()
	err := u.codec.WriteBatch(ctx, filestore.TransactionsInStorage{
		StartingVersion: firstVersion,
		Transactions:    u.buffer,
	})
	if err != nil {
		return fmt.Errorf("write batch at %d: %w", firstVersion, err)
	}
	u.metrics.ObserveFlush(time.Since(start))

	u.batchMeta.Files = append(u.batchMeta.Files, filestore.BatchFile{
		FirstVersion: firstVersion,
		ByteSize:     int(u.bufferSize),
	})

	if endBatch {
		folder := filestore.FolderForVersion(firstVersion)
		if err := u.codec.WriteBatchMetadata(ctx, folder, u.batchMeta); err != nil {
			return fmt.Errorf("write batch metadata for folder %d: %w", folder, err)
		}
		if err := u.codec.WriteRootMetadata(ctx, filestore.RootMetadata{
			ChainID:       u.chainID,
			Version:       lastVersion + 1,
			StorageFormat: filestore.FormatLz4CompressedProto,
		}); err != nil {
			return fmt.Errorf("write root metadata: %w", err)
		}
		u.batchMeta = filestore.BatchMetadata{}
	}

	u.log.Debug().
		Uint64("first_version", firstVersion).
		Uint64("last_version", lastVersion).
		Int64("bytes", u.bufferSize).
		Bool("end_batch", endBatch).
		Msg("flushed batch")

	u.buffer = nil
	u.bufferSize = 0
	return nil
}

// Version reports the next version the uploader will fetch, for metrics
// and tests.
func (u *Uploader) Version() uint64 { return u.version }
