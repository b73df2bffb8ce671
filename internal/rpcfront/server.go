package rpcfront

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/cuemby/txstream/internal/pb"
)

// keepaliveEnforcement rejects clients that ping more often than once every
// ten seconds. keepaliveParams has the server ping a client after sixty
// seconds without activity and close the connection if that ping is not
// acknowledged within ten seconds; idle connections are not otherwise closed.
var keepaliveEnforcement = keepalive.EnforcementPolicy{
	MinTime:             10 * time.Second,
	PermitWithoutStream: true,
}

var keepaliveParams = keepalive.ServerParameters{
	Time:    60 * time.Second,
	Timeout: 10 * time.Second,
}

// Server hosts the Manager, DataService and RawData RPCs on a single
// *grpc.Server, forcing the JSON codec registered by internal/pb in place
// of the default protobuf codec.
type Server struct {
	grpc *grpc.Server
	log  zerolog.Logger
}

// NewServer constructs the gRPC listener. Pass nil for any service this
// process doesn't host: cmd/manager registers manager only, cmd/livedata
// registers dataService and rawData.
func NewServer(manager pb.ManagerServer, dataService, rawData pb.DataServiceServer, log zerolog.Logger) *Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(pb.Codec()),
		grpc.KeepaliveEnforcementPolicy(keepaliveEnforcement),
		grpc.KeepaliveParams(keepaliveParams),
	)
	if manager != nil {
		srv.RegisterService(&pb.ManagerServiceDesc, manager)
	}
	if dataService != nil {
		srv.RegisterService(&pb.DataServiceServiceDesc, dataService)
	}
	if rawData != nil {
		srv.RegisterService(&pb.RawDataServiceDesc, rawData)
	}
	return &Server{grpc: srv, log: log.With().Str("component", "rpcfront.server").Logger()}
}

// Serve listens on addr and blocks until the server stops or the listener
// fails.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpcfront: listen on %s: %w", addr, err)
	}
	s.log.Info().Str("addr", addr).Msg("gRPC server listening")
	return s.grpc.Serve(lis)
}

// GracefulStop waits for in-flight RPCs, including active streams, to
// finish before returning.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}
