package rpcfront_test

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/cuemby/txstream/internal/fabric"
	"github.com/cuemby/txstream/internal/livecache"
	"github.com/cuemby/txstream/internal/pb"
	"github.com/cuemby/txstream/internal/rpcfront"
	"github.com/cuemby/txstream/internal/txerrors"
	"github.com/cuemby/txstream/internal/txn"
)

type noopPeerClient struct{}

func (noopPeerClient) Heartbeat(ctx context.Context, knownLatest uint64) (uint64, error) {
	return knownLatest, nil
}

func (noopPeerClient) Ping(ctx context.Context, knownLatest uint64) (uint64, error) {
	return knownLatest, nil
}

func (noopPeerClient) Close() error { return nil }

func noopDialer(addr string) (fabric.PeerClient, error) {
	return noopPeerClient{}, nil
}

func mkTxns(start uint64, n int) []txn.Transaction {
	out := make([]txn.Transaction, n)
	for i := 0; i < n; i++ {
		out[i] = txn.New(start+uint64(i), []byte("xx"))
	}
	return out
}

func TestManagerHeartbeatRejectsMissingAddress(t *testing.T) {
	fab := fabric.New(noopDialer, nil, zerolog.Nop())
	srv := rpcfront.NewManagerServer(fab, nil, zerolog.Nop())

	_, err := srv.Heartbeat(context.Background(), &pb.HeartbeatRequest{})
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestManagerHeartbeatFoldsKnownLatest(t *testing.T) {
	fab := fabric.New(noopDialer, nil, zerolog.Nop())
	srv := rpcfront.NewManagerServer(fab, nil, zerolog.Nop())

	resp, err := srv.Heartbeat(context.Background(), &pb.HeartbeatRequest{
		ServiceType:        pb.ServiceTypeFullnode,
		Address:            "10.0.0.1:9090",
		KnownLatestVersion: 100,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(100), resp.KnownLatestVersion)
}

// --- DataService / streaming ---

type fakeServerStream struct {
	grpc.ServerStream
	ctx  context.Context
	sent []*pb.StreamTransactionsResponse
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func (s *fakeServerStream) Send(m *pb.StreamTransactionsResponse) error {
	s.sent = append(s.sent, m)
	return nil
}

func (s *fakeServerStream) SendMsg(m interface{}) error {
	return s.Send(m.(*pb.StreamTransactionsResponse))
}

func (s *fakeServerStream) RecvMsg(m interface{}) error { return nil }

func (s *fakeServerStream) SetHeader(metadata.MD) error  { return nil }
func (s *fakeServerStream) SendHeader(metadata.MD) error { return nil }
func (s *fakeServerStream) SetTrailer(metadata.MD)       {}

func TestDataServiceStreamDeliversToEndVersion(t *testing.T) {
	end := uint64(5)
	cache := livecache.New(0, nil)
	cache.UpdateData(mkTxns(0, 5))

	fab := fabric.New(noopDialer, nil, zerolog.Nop())
	srv := rpcfront.NewDataServiceServer(cache, fab, zerolog.Nop())

	stream := &fakeServerStream{ctx: context.Background()}
	err := srv.StreamTransactions(&pb.StreamTransactionsRequest{StartVersion: 0, EndVersion: end}, stream)
	require.NoError(t, err)

	var total int
	for _, batch := range stream.sent {
		total += len(batch.Transactions)
	}
	require.Equal(t, 5, total)
}

func TestDataServicePingReportsActiveStreams(t *testing.T) {
	fab := fabric.New(noopDialer, nil, zerolog.Nop())
	cache := livecache.New(0, nil)
	srv := rpcfront.NewDataServiceServer(cache, fab, zerolog.Nop())

	fab.FetchMaxKnownLatestVersion(10)
	resp, err := srv.Ping(context.Background(), &pb.PingRequest{KnownLatestVersion: 3})
	require.NoError(t, err)
	require.Equal(t, uint64(10), resp.KnownLatestVersion)
	require.Equal(t, int32(0), resp.ActiveStreams)
}

// --- RawData fallback ---

type tooOldLive struct {
	pb.UnimplementedDataServiceServer
}

func (tooOldLive) StreamTransactions(req *pb.StreamTransactionsRequest, stream pb.DataService_StreamTransactionsServer) error {
	return status.Error(codes.NotFound, txerrors.ErrTooOld.Error())
}

type fakeHistoricalClient struct {
	batches []*pb.StreamTransactionsResponse
	idx     int
}

func (f *fakeHistoricalClient) Recv() (*pb.StreamTransactionsResponse, error) {
	if f.idx >= len(f.batches) {
		return nil, io.EOF
	}
	b := f.batches[f.idx]
	f.idx++
	return b, nil
}

func (f *fakeHistoricalClient) Header() (metadata.MD, error) { return nil, nil }
func (f *fakeHistoricalClient) Trailer() metadata.MD         { return nil }
func (f *fakeHistoricalClient) CloseSend() error             { return nil }
func (f *fakeHistoricalClient) Context() context.Context     { return context.Background() }
func (f *fakeHistoricalClient) SendMsg(m interface{}) error   { return nil }
func (f *fakeHistoricalClient) RecvMsg(m interface{}) error   { return nil }

type fakeHistoricalStreamer struct {
	client *fakeHistoricalClient
}

func (f *fakeHistoricalStreamer) StreamTransactions(ctx context.Context, req *pb.StreamTransactionsRequest) (pb.DataService_StreamTransactionsClient, error) {
	return f.client, nil
}

func TestRawDataFallsBackToHistoricalWhenTooOld(t *testing.T) {
	historical := &fakeHistoricalStreamer{client: &fakeHistoricalClient{
		batches: []*pb.StreamTransactionsResponse{
			{Transactions: []pb.Transaction{{Version: 0, Data: []byte("a")}}},
		},
	}}
	srv := rpcfront.NewRawDataServer(tooOldLive{}, historical, zerolog.Nop())

	stream := &fakeServerStream{ctx: context.Background()}
	err := srv.StreamTransactions(&pb.StreamTransactionsRequest{StartVersion: 0}, stream)
	require.NoError(t, err)
	require.Len(t, stream.sent, 1)
}

func TestRawDataWithoutHistoricalPropagatesError(t *testing.T) {
	srv := rpcfront.NewRawDataServer(tooOldLive{}, nil, zerolog.Nop())

	stream := &fakeServerStream{ctx: context.Background()}
	err := srv.StreamTransactions(&pb.StreamTransactionsRequest{StartVersion: 0}, stream)
	require.Error(t, err)
	require.Equal(t, codes.NotFound, status.Code(err))
}
