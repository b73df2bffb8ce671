// Package dataservice implements the Manager tier's read path:
// get_transactions(start_version, max_size) resolved in priority order
// against the in-memory cache, the durable file store, and — only when the
// cache is lagging the chain tip — a one-shot fall-forward read from a
// fullnode.
package dataservice

import (
	"context"
	"fmt"

	"github.com/cuemby/txstream/internal/filestore"
	"github.com/cuemby/txstream/internal/managercache"
	"github.com/cuemby/txstream/internal/txerrors"
	"github.com/cuemby/txstream/internal/txn"
)

// MaxBatchSize is the hard ceiling on how much a single GetTransactions
// call will return, regardless of what the caller asks for (§4.5).
const MaxBatchSize int64 = 5 << 20

// LagThreshold is how far behind known_latest_version the cache head must
// fall before GetTransactions will fall forward to a fullnode rather than
// returning nothing for a past-the-cache-head request.
const LagThreshold = 20000

// fileStoreReadRetries bounds how many times a single file-store read is
// retried before GetTransactions gives up and reports unavailability.
const fileStoreReadRetries = 3

// FullnodeClient is the external collaborator for fall-forward reads: a
// one-shot request against the upstream fullnode stream, returning
// whatever chunk it answers with. The full duplex streaming protocol to
// the fullnode is out of scope here; only this one-shot shape is needed.
type FullnodeClient interface {
	GetTransactionsChunk(ctx context.Context, startVersion uint64) ([]txn.Transaction, error)
}

// LatestVersionSource reports the process-wide known_latest_version used
// to decide whether the cache is "lagging".
type LatestVersionSource interface {
	KnownLatestVersion() uint64
}

// Service implements ManagerDataService.GetTransactions.
type Service struct {
	cache    *managercache.Cache
	codec    *filestore.Codec
	fullnode FullnodeClient
	latest   LatestVersionSource
}

// New builds a Service. fullnode may be nil if no fall-forward fullnode is
// configured; lagging requests past the cache head then simply return no
// transactions instead of erroring.
func New(cache *managercache.Cache, codec *filestore.Codec, fullnode FullnodeClient, latest LatestVersionSource) *Service {
	return &Service{cache: cache, codec: codec, fullnode: fullnode, latest: latest}
}

// GetTransactions resolves a read against the cache, file store, or
// fullnode fall-forward, per the priority order in the package doc.
// maxSize is clamped to MaxBatchSize.
func (s *Service) GetTransactions(ctx context.Context, startVersion uint64, maxSize int64) ([]txn.Transaction, error) {
	if maxSize <= 0 || maxSize > MaxBatchSize {
		maxSize = MaxBatchSize
	}

	cacheStart := s.cache.StartVersion()
	if startVersion >= cacheStart {
		cacheEnd := s.cache.EndVersion()
		if startVersion < cacheEnd {
			return s.cache.GetTransactions(startVersion, maxSize, false), nil
		}
		return s.fallForward(ctx, startVersion)
	}

	return s.fromFileStore(ctx, startVersion)
}

func (s *Service) fallForward(ctx context.Context, startVersion uint64) ([]txn.Transaction, error) {
	if s.fullnode == nil || !s.isLagging() {
		return nil, nil
	}
	return s.fullnode.GetTransactionsChunk(ctx, startVersion)
}

func (s *Service) isLagging() bool {
	if s.latest == nil {
		return false
	}
	return s.cache.EndVersion()+LagThreshold < s.latest.KnownLatestVersion()
}

func (s *Service) fromFileStore(ctx context.Context, startVersion uint64) ([]txn.Transaction, error) {
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan txn.Transaction, 4096)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		errCh <- s.codec.GetTransactionBatch(readCtx, startVersion, fileStoreReadRetries, 1, out)
	}()

	var result []txn.Transaction
	var size int64
	full := false
	for t := range out {
		if full {
			continue
		}
		result = append(result, t)
		size += int64(t.EncodedLen())
		if size >= MaxBatchSize {
			full = true
			// Stop the producer early; draining continues until it observes
			// readCtx's cancellation and closes out.
			cancel()
		}
	}

	if err := <-errCh; err != nil && err != context.Canceled {
		return nil, fmt.Errorf("dataservice: %w: %w", txerrors.ErrFileStoreUnavailable, err)
	}
	if len(result) == 0 {
		return nil, txerrors.ErrFileStoreUnavailable
	}
	return result, nil
}
