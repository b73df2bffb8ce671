package rpcfront

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cuemby/txstream/internal/fabric"
	"github.com/cuemby/txstream/internal/livecache"
	"github.com/cuemby/txstream/internal/livestream"
	"github.com/cuemby/txstream/internal/pb"
	"github.com/cuemby/txstream/internal/txn"
)

// grpcSender adapts a pb.DataService_StreamTransactionsServer to
// livestream.Sender.
type grpcSender struct {
	stream pb.DataService_StreamTransactionsServer
}

func (g grpcSender) Send(batch []txn.Transaction) error {
	return g.stream.Send(&pb.StreamTransactionsResponse{Transactions: toWireTransactions(batch)})
}

// dataServiceServer implements pb.DataServiceServer over the Live Data
// tier's ring cache and per-client streaming.
type dataServiceServer struct {
	pb.UnimplementedDataServiceServer
	cache *livecache.Cache
	fab   *fabric.Fabric
	log   zerolog.Logger
}

// NewDataServiceServer builds the Live Data RPC implementation.
func NewDataServiceServer(cache *livecache.Cache, fab *fabric.Fabric, log zerolog.Logger) pb.DataServiceServer {
	return &dataServiceServer{cache: cache, fab: fab, log: log.With().Str("component", "rpcfront.dataservice").Logger()}
}

func (s *dataServiceServer) Ping(ctx context.Context, req *pb.PingRequest) (*pb.PingResponse, error) {
	s.fab.FetchMaxKnownLatestVersion(req.KnownLatestVersion)
	return &pb.PingResponse{
		KnownLatestVersion: s.fab.KnownLatestVersion(),
		ActiveStreams:      int32(len(s.fab.ActiveStreams())),
	}, nil
}

func (s *dataServiceServer) StreamTransactions(req *pb.StreamTransactionsRequest, stream pb.DataService_StreamTransactionsServer) error {
	var endVersion *uint64
	if req.EndVersion > 0 {
		v := req.EndVersion
		endVersion = &v
	}
	live := livestream.New(s.cache, s.fab, grpcSender{stream: stream}, livestream.Request{
		StartVersion:    req.StartVersion,
		EndVersion:      endVersion,
		MaxBytesPerSend: req.MaxBytesPerSend,
		BatchSize:       req.BatchSize,
	})
	if err := live.Run(stream.Context()); err != nil {
		return toStatus(err)
	}
	return nil
}
