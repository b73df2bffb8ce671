package dataservice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/txstream/internal/blobstore"
	"github.com/cuemby/txstream/internal/dataservice"
	"github.com/cuemby/txstream/internal/filestore"
	"github.com/cuemby/txstream/internal/managercache"
	"github.com/cuemby/txstream/internal/txerrors"
	"github.com/cuemby/txstream/internal/txn"
	"github.com/stretchr/testify/require"
)

func mkTxns(start uint64, n int) []txn.Transaction {
	out := make([]txn.Transaction, n)
	for i := range out {
		out[i] = txn.New(start+uint64(i), []byte{0, 0})
	}
	return out
}

type fixedLatest uint64

func (f fixedLatest) KnownLatestVersion() uint64 { return uint64(f) }

type fakeFullnode struct {
	chunk []txn.Transaction
	err   error
	calls int
}

func (f *fakeFullnode) GetTransactionsChunk(ctx context.Context, startVersion uint64) ([]txn.Transaction, error) {
	f.calls++
	return f.chunk, f.err
}

func TestGetTransactionsServesFromCache(t *testing.T) {
	cache := managercache.New(0)
	cache.PutTransactions(mkTxns(0, 10))
	codec := filestore.NewCodec(blobstore.NewMemory(), nil)

	svc := dataservice.New(cache, codec, nil, nil)
	got, err := svc.GetTransactions(context.Background(), 3, 1024)
	require.NoError(t, err)
	require.Len(t, got, 7)
	require.Equal(t, uint64(3), got[0].Version())
}

func TestGetTransactionsBelowCacheFloorReadsFileStore(t *testing.T) {
	store := blobstore.NewMemory()
	codec := filestore.NewCodec(store, nil)
	require.NoError(t, codec.WriteBatch(context.Background(), filestore.TransactionsInStorage{
		StartingVersion: 0,
		Transactions:    mkTxns(0, 10),
	}))
	require.NoError(t, codec.WriteBatchMetadata(context.Background(), 0, filestore.BatchMetadata{
		Files: []filestore.BatchFile{{FirstVersion: 0, ByteSize: 1}},
	}))

	cache := managercache.New(10) // cache floor is 10, request is below it
	svc := dataservice.New(cache, codec, nil, nil)

	got, err := svc.GetTransactions(context.Background(), 4, 1024)
	require.NoError(t, err)
	require.Equal(t, []uint64{4, 5, 6, 7, 8, 9}, versionsOf(got))
}

func TestGetTransactionsBelowFloorLargeBatchDoesNotDeadlock(t *testing.T) {
	// Regression test: a batch file holding more than the internal
	// fromFileStore channel buffer (4096) must not deadlock waiting for a
	// consumer that hasn't started draining yet.
	const count = 5000
	store := blobstore.NewMemory()
	codec := filestore.NewCodec(store, nil)
	require.NoError(t, codec.WriteBatch(context.Background(), filestore.TransactionsInStorage{
		StartingVersion: 0,
		Transactions:    mkTxns(0, count),
	}))
	require.NoError(t, codec.WriteBatchMetadata(context.Background(), 0, filestore.BatchMetadata{
		Files: []filestore.BatchFile{{FirstVersion: 0, ByteSize: 1}},
	}))

	cache := managercache.New(10)
	svc := dataservice.New(cache, codec, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := svc.GetTransactions(ctx, 0, 1024)
	require.NoError(t, err)
	require.Len(t, got, count)
}

func TestGetTransactionsBelowFloorMissingDataFails(t *testing.T) {
	codec := filestore.NewCodec(blobstore.NewMemory(), nil)
	cache := managercache.New(10)
	svc := dataservice.New(cache, codec, nil, nil)

	_, err := svc.GetTransactions(context.Background(), 4, 1024)
	require.True(t, errors.Is(err, txerrors.ErrFileStoreUnavailable))
}

func TestGetTransactionsPastCacheHeadNotLaggingReturnsEmpty(t *testing.T) {
	cache := managercache.New(0)
	cache.PutTransactions(mkTxns(0, 5))
	codec := filestore.NewCodec(blobstore.NewMemory(), nil)
	fn := &fakeFullnode{}

	svc := dataservice.New(cache, codec, fn, fixedLatest(10))
	got, err := svc.GetTransactions(context.Background(), 5, 1024)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Zero(t, fn.calls)
}

func TestGetTransactionsPastCacheHeadLaggingFallsForward(t *testing.T) {
	cache := managercache.New(0)
	cache.PutTransactions(mkTxns(0, 5))
	codec := filestore.NewCodec(blobstore.NewMemory(), nil)
	fn := &fakeFullnode{chunk: mkTxns(5, 3)}

	svc := dataservice.New(cache, codec, fn, fixedLatest(5+dataservice.LagThreshold+1))
	got, err := svc.GetTransactions(context.Background(), 5, 1024)
	require.NoError(t, err)
	require.Equal(t, 1, fn.calls)
	require.Equal(t, []uint64{5, 6, 7}, versionsOf(got))
}

func versionsOf(txns []txn.Transaction) []uint64 {
	out := make([]uint64, len(txns))
	for i, t := range txns {
		out[i] = t.Version()
	}
	return out
}
