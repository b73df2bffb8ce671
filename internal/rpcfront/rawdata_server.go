package rpcfront

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/txstream/internal/pb"
	"github.com/cuemby/txstream/internal/txerrors"
)

// HistoricalStreamer opens a StreamTransactions subscription against a
// historical data service, used only when the live tier can't serve a
// request because the requested version has already scrolled off the ring
// buffer.
type HistoricalStreamer interface {
	StreamTransactions(ctx context.Context, req *pb.StreamTransactionsRequest) (pb.DataService_StreamTransactionsClient, error)
}

// rawDataServer implements pb.DataServiceServer (registered as the RawData
// service) by preferring the live tier and falling back to a historical
// streamer the moment the live tier reports the request is too old. The
// live attempt either serves the whole request or fails before sending
// anything, so falling back never double-delivers a batch to the client.
type rawDataServer struct {
	pb.UnimplementedDataServiceServer
	live       pb.DataServiceServer
	historical HistoricalStreamer
	log        zerolog.Logger
}

// NewRawDataServer builds the RawData RPC implementation. historical may be
// nil, in which case a too-old request simply fails with NOT_FOUND.
func NewRawDataServer(live pb.DataServiceServer, historical HistoricalStreamer, log zerolog.Logger) pb.DataServiceServer {
	return &rawDataServer{live: live, historical: historical, log: log.With().Str("component", "rpcfront.rawdata").Logger()}
}

func (s *rawDataServer) Ping(ctx context.Context, req *pb.PingRequest) (*pb.PingResponse, error) {
	return s.live.Ping(ctx, req)
}

func (s *rawDataServer) StreamTransactions(req *pb.StreamTransactionsRequest, stream pb.DataService_StreamTransactionsServer) error {
	err := s.live.StreamTransactions(req, stream)
	if err == nil || !isTooOld(err) || s.historical == nil {
		return err
	}

	s.log.Info().Uint64("start_version", req.StartVersion).Msg("falling back to historical data service")
	upstream, dialErr := s.historical.StreamTransactions(stream.Context(), req)
	if dialErr != nil {
		return err
	}
	for {
		batch, recvErr := upstream.Recv()
		if recvErr == io.EOF {
			return nil
		}
		if recvErr != nil {
			return toStatus(recvErr)
		}
		if sendErr := stream.Send(batch); sendErr != nil {
			return sendErr
		}
	}
}

// isTooOld recognizes a too-old failure both as the raw domain sentinel and
// as the NotFound status toStatus already converted it to, since the error
// may have already crossed one RPC hop by the time it's inspected here.
func isTooOld(err error) bool {
	if errors.Is(err, txerrors.ErrTooOld) {
		return true
	}
	return status.Code(err) == codes.NotFound
}
