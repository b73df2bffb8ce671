package uploader_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/txstream/internal/blobstore"
	"github.com/cuemby/txstream/internal/filestore"
	"github.com/cuemby/txstream/internal/managercache"
	"github.com/cuemby/txstream/internal/txn"
	"github.com/cuemby/txstream/internal/uploader"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestUploaderFlushesOnlyAtFolderBoundary(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cache := managercache.New(9995)
	txns := make([]txn.Transaction, 10)
	for i := range txns {
		txns[i] = txn.New(uint64(9995+i), []byte{0, 0, 0}) // 3 bytes each
	}
	cache.PutTransactions(txns)

	store := blobstore.NewMemory()
	codec := filestore.NewCodec(store, nil)
	require.NoError(t, codec.WriteRootMetadata(ctx, filestore.RootMetadata{
		ChainID: 7, Version: 9995, StorageFormat: filestore.FormatLz4CompressedProto,
	}))
	up := uploader.New(cache, codec, 7, zerolog.Nop(), nil)

	done := make(chan error, 1)
	go func() { done <- up.Run(ctx) }()

	require.Eventually(t, func() bool { return up.Version() == 10005 }, time.Second, 5*time.Millisecond)
	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	rm, found, err := codec.ReadRootMetadata(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(10000), rm.Version, "root metadata only advances at the folder boundary")
	require.Equal(t, uint64(7), rm.ChainID)

	bm0, err := codec.ReadBatchMetadata(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Equal(t, []filestore.BatchFile{{FirstVersion: 9995, ByteSize: 15}}, bm0.Files)

	_, err = codec.ReadBatchMetadata(context.Background(), 1, 0)
	require.ErrorIs(t, err, blobstore.ErrNotFound, "folder 1 has no boundary flush yet")
}

func TestUploaderChainIDMismatchFails(t *testing.T) {
	store := blobstore.NewMemory()
	codec := filestore.NewCodec(store, nil)
	require.NoError(t, codec.WriteRootMetadata(context.Background(), filestore.RootMetadata{
		ChainID: 1, Version: 0, StorageFormat: filestore.FormatLz4CompressedProto,
	}))

	cache := managercache.New(0)
	up := uploader.New(cache, codec, 2, zerolog.Nop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := up.Run(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "chain id mismatch")
}

func TestUploaderInitializesFreshRootMetadata(t *testing.T) {
	store := blobstore.NewMemory()
	codec := filestore.NewCodec(store, nil)
	cache := managercache.New(0)
	up := uploader.New(cache, codec, 9, zerolog.Nop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = up.Run(ctx)

	rm, found, err := codec.ReadRootMetadata(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(0), rm.Version)
	require.Equal(t, uint64(9), rm.ChainID)
}
