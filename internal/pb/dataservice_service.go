package pb

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// DataServiceServer is the Live Data tier's RPC surface: a lightweight Ping
// for the metadata fabric, and a server-streaming subscription over
// StreamTransactions.
type DataServiceServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	StreamTransactions(*StreamTransactionsRequest, DataService_StreamTransactionsServer) error
}

// UnimplementedDataServiceServer can be embedded by a DataServiceServer
// implementation to stay source-compatible as the service grows.
type UnimplementedDataServiceServer struct{}

func (UnimplementedDataServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, fmt.Errorf("pb: DataService.Ping not implemented")
}

func (UnimplementedDataServiceServer) StreamTransactions(*StreamTransactionsRequest, DataService_StreamTransactionsServer) error {
	return fmt.Errorf("pb: DataService.StreamTransactions not implemented")
}

// DataService_StreamTransactionsServer is the server side of the
// StreamTransactions subscription, one Send call per delivered batch.
type DataService_StreamTransactionsServer interface {
	Send(*StreamTransactionsResponse) error
	grpc.ServerStream
}

type dataServiceStreamTransactionsServer struct {
	grpc.ServerStream
}

func (s *dataServiceStreamTransactionsServer) Send(m *StreamTransactionsResponse) error {
	return s.ServerStream.SendMsg(m)
}

func _DataService_Ping_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DataServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/txstream.DataService/Ping"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DataServiceServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _DataService_StreamTransactions_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(StreamTransactionsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DataServiceServer).StreamTransactions(m, &dataServiceStreamTransactionsServer{stream})
}

// DataServiceServiceDesc is registered on a *grpc.Server via
// grpc.Server.RegisterService(&DataServiceServiceDesc, impl).
var DataServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: "txstream.DataService",
	HandlerType: (*DataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: _DataService_Ping_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamTransactions",
			Handler:       _DataService_StreamTransactions_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "dataservice.proto",
}

// RawDataServiceDesc registers the same handlers under the RawData service
// name: RawData is a thin client-facing alias of DataService that, through
// internal/rpcfront's live-first fallback, may be backed by either the live
// or the historical tier without the caller knowing which.
var RawDataServiceDesc = grpc.ServiceDesc{
	ServiceName: "txstream.RawData",
	HandlerType: (*DataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: _DataService_Ping_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamTransactions",
			Handler:       _DataService_StreamTransactions_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "rawdata.proto",
}

// DataServiceClient is the caller side of DataServiceServer.
type DataServiceClient struct {
	cc *grpc.ClientConn
}

// NewDataServiceClient wraps an established connection.
func NewDataServiceClient(cc *grpc.ClientConn) *DataServiceClient {
	return &DataServiceClient{cc: cc}
}

func (c *DataServiceClient) Ping(ctx context.Context, in *PingRequest) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.cc.Invoke(ctx, "/txstream.DataService/Ping", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DataService_StreamTransactionsClient is the caller side of the
// StreamTransactions subscription; Recv blocks until the next batch or a
// terminal error (io.EOF when the server ends the stream cleanly).
type DataService_StreamTransactionsClient interface {
	Recv() (*StreamTransactionsResponse, error)
	grpc.ClientStream
}

type dataServiceStreamTransactionsClient struct {
	grpc.ClientStream
}

func (c *dataServiceStreamTransactionsClient) Recv() (*StreamTransactionsResponse, error) {
	m := new(StreamTransactionsResponse)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *DataServiceClient) StreamTransactions(ctx context.Context, in *StreamTransactionsRequest) (DataService_StreamTransactionsClient, error) {
	stream, err := c.cc.NewStream(ctx, &DataServiceServiceDesc.Streams[0], "/txstream.DataService/StreamTransactions")
	if err != nil {
		return nil, err
	}
	x := &dataServiceStreamTransactionsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
