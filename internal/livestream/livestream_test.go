package livestream_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/txstream/internal/fabric"
	"github.com/cuemby/txstream/internal/livecache"
	"github.com/cuemby/txstream/internal/livestream"
	"github.com/cuemby/txstream/internal/txerrors"
	"github.com/cuemby/txstream/internal/txn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func mkTxns(start uint64, n int) []txn.Transaction {
	out := make([]txn.Transaction, n)
	for i := range out {
		out[i] = txn.New(start+uint64(i), []byte{0, 0})
	}
	return out
}

type collectingSender struct {
	mu      sync.Mutex
	batches [][]txn.Transaction
	failAt  int
}

func (s *collectingSender) Send(batch []txn.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.batches) == s.failAt {
		return errors.New("client disconnected")
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *collectingSender) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestStreamDeliversUpToEndVersion(t *testing.T) {
	cache := livecache.NewWithLimits(0, 256, 1<<20, 1<<20, nil)
	cache.UpdateData(mkTxns(0, 20))

	end := uint64(10)
	sender := &collectingSender{}
	f := fabric.New(nil, nil, zerolog.Nop())
	s := livestream.New(cache, f, sender, livestream.Request{StartVersion: 0, EndVersion: &end})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, sender.total())
	require.Empty(t, f.ActiveStreams(), "stream deregisters itself on completion")
}

func TestStreamTooOldFails(t *testing.T) {
	cache := livecache.NewWithLimits(50, 256, 1<<20, 1<<20, nil)
	cache.UpdateData(mkTxns(50, 5))

	sender := &collectingSender{}
	f := fabric.New(nil, nil, zerolog.Nop())
	s := livestream.New(cache, f, sender, livestream.Request{StartVersion: 0})

	err := s.Run(context.Background())
	require.ErrorIs(t, err, txerrors.ErrTooOld)
}

func TestStreamFarFutureFails(t *testing.T) {
	cache := livecache.NewWithLimits(0, 256, 1<<20, 1<<20, nil)
	sender := &collectingSender{}
	f := fabric.New(nil, nil, zerolog.Nop())
	s := livestream.New(cache, f, sender, livestream.Request{StartVersion: livestream.FarFutureSlack + 1})

	err := s.Run(context.Background())
	require.ErrorIs(t, err, txerrors.ErrFarFuture)
}

func TestStreamFarFutureGatesOnFabricKnownLatest(t *testing.T) {
	// A cache lagging well behind the fabric's known_latest_version must
	// not let far-future requests through just because the cache head is
	// low: the gate is known_latest_version + FarFutureSlack, not the
	// cache head.
	cache := livecache.NewWithLimits(0, 256, 1<<20, 1<<20, func(ctx context.Context, from uint64) ([]txn.Transaction, error) {
		return nil, nil
	})
	sender := &collectingSender{}
	f := fabric.New(nil, nil, zerolog.Nop())
	f.FetchMaxKnownLatestVersion(1_000_000)

	s := livestream.New(cache, f, sender, livestream.Request{StartVersion: 1_000_000 + livestream.FarFutureSlack + 1})
	err := s.Run(context.Background())
	require.ErrorIs(t, err, txerrors.ErrFarFuture)

	// Exactly at the boundary (known_latest_version + FarFutureSlack) the
	// request is accepted, not rejected, and instead waits at the head.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	atBoundary := livestream.New(cache, f, sender, livestream.Request{StartVersion: 1_000_000 + livestream.FarFutureSlack})
	err = atBoundary.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDrainBatchCapsByBatchSizeOfOne(t *testing.T) {
	cache := livecache.NewWithLimits(0, 256, 1<<20, 1<<20, nil)
	cache.UpdateData(mkTxns(0, 20))

	sender := &collectingSender{}
	f := fabric.New(nil, nil, zerolog.Nop())
	end := uint64(5)
	s := livestream.New(cache, f, sender, livestream.Request{StartVersion: 0, EndVersion: &end, BatchSize: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	require.Equal(t, 5, sender.total())
	for _, batch := range sender.batches {
		require.Len(t, batch, 1, "batch_size=1 must cap each delivered message to exactly one transaction")
	}
}

func TestStreamStopsOnSendFailure(t *testing.T) {
	cache := livecache.NewWithLimits(0, 256, 1<<20, 1<<20, nil)
	cache.UpdateData(mkTxns(0, 5))

	sender := &collectingSender{failAt: 1}
	f := fabric.New(nil, nil, zerolog.Nop())
	end := uint64(5)
	s := livestream.New(cache, f, sender, livestream.Request{StartVersion: 0, EndVersion: &end, BatchSize: 1})

	err := s.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disconnected")
}

func TestStreamWaitsAtHeadThenFetches(t *testing.T) {
	cache := livecache.NewWithLimits(0, 256, 1<<20, 1<<20, func(ctx context.Context, from uint64) ([]txn.Transaction, error) {
		return mkTxns(from, 3), nil
	})

	sender := &collectingSender{}
	f := fabric.New(nil, nil, zerolog.Nop())
	end := uint64(3)
	s := livestream.New(cache, f, sender, livestream.Request{StartVersion: 0, EndVersion: &end})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	require.Equal(t, 3, sender.total())
}
