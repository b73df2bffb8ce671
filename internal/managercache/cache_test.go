package managercache_test

import (
	"testing"

	"github.com/cuemby/txstream/internal/managercache"
	"github.com/cuemby/txstream/internal/txn"
	"github.com/stretchr/testify/require"
)

func oneByteTxns(start uint64, n int) []txn.Transaction {
	out := make([]txn.Transaction, n)
	for i := range out {
		out[i] = txn.New(start+uint64(i), []byte{0})
	}
	return out
}

func TestPutAndGetContiguous(t *testing.T) {
	c := managercache.New(0)
	c.PutTransactions(oneByteTxns(0, 8))

	got := c.GetTransactions(0, 1024, false)
	require.Len(t, got, 8)
	require.Equal(t, uint64(8), c.EndVersion())
}

func TestGetBelowFloorReturnsEmpty(t *testing.T) {
	c := managercache.New(10)
	c.PutTransactions(oneByteTxns(10, 5))

	got := c.GetTransactions(5, 1024, false)
	require.Empty(t, got)
}

func TestGetAdvancesUploaderCursor(t *testing.T) {
	c := managercache.New(0)
	c.PutTransactions(oneByteTxns(0, 5))

	require.Equal(t, uint64(0), c.FileStoreVersion())
	got := c.GetTransactions(0, 1024, true)
	require.Len(t, got, 5)
	require.Equal(t, uint64(5), c.FileStoreVersion())
}

func TestGetSizeOvershootKeepsTippingTransaction(t *testing.T) {
	c := managercache.New(0)
	txns := []txn.Transaction{
		txn.New(0, []byte{0, 0, 0}),
		txn.New(1, []byte{0, 0, 0}),
		txn.New(2, []byte{0, 0, 0}),
	}
	c.PutTransactions(txns)

	got := c.GetTransactions(0, 4, false)
	require.Len(t, got, 2) // 3 bytes, then 3+3=6 >= 4 -> stop after 2nd
}

func TestEvictionNeverPassesFileStoreVersion(t *testing.T) {
	c := managercache.NewWithWatermarks(0, 3, 2)
	c.PutTransactions(oneByteTxns(0, 4))

	// file_store_version still at 0: nothing eligible for eviction.
	ok := c.MaybeEvict()
	require.False(t, ok) // cache_size=4 > max=3, nothing evicted since fsv=startVersion
	require.Equal(t, uint64(0), c.StartVersion())

	// advance the uploader cursor to 4 (as if all 4 were durably uploaded).
	c.GetTransactions(0, 1<<30, true)
	require.Equal(t, uint64(4), c.FileStoreVersion())

	ok = c.MaybeEvict()
	require.True(t, ok)
	require.LessOrEqual(t, c.StartVersion(), c.FileStoreVersion())
	require.Equal(t, int64(2), c.Size())
}

func TestMaybeEvictUnderMaxIsNoop(t *testing.T) {
	c := managercache.New(0)
	c.PutTransactions(oneByteTxns(0, 2))
	require.True(t, c.MaybeEvict())
	require.Equal(t, uint64(0), c.StartVersion())
}
