package pb

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// ManagerServer is the Manager tier's non-streaming RPC surface:
// Heartbeat for the control plane and a point read over GetTransactions.
type ManagerServer interface {
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	GetTransactions(context.Context, *GetTransactionsRequest) (*GetTransactionsResponse, error)
}

// UnimplementedManagerServer can be embedded by a ManagerServer
// implementation to satisfy the interface for methods it doesn't need to
// override, and to stay source-compatible if the service grows a method.
type UnimplementedManagerServer struct{}

func (UnimplementedManagerServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, fmt.Errorf("pb: Manager.Heartbeat not implemented")
}

func (UnimplementedManagerServer) GetTransactions(context.Context, *GetTransactionsRequest) (*GetTransactionsResponse, error) {
	return nil, fmt.Errorf("pb: Manager.GetTransactions not implemented")
}

func _Manager_Heartbeat_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagerServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/txstream.Manager/Heartbeat"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ManagerServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Manager_GetTransactions_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetTransactionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagerServer).GetTransactions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/txstream.Manager/GetTransactions"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ManagerServer).GetTransactions(ctx, req.(*GetTransactionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ManagerServiceDesc is registered on a *grpc.Server via
// grpc.Server.RegisterService(&ManagerServiceDesc, impl).
var ManagerServiceDesc = grpc.ServiceDesc{
	ServiceName: "txstream.Manager",
	HandlerType: (*ManagerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Heartbeat", Handler: _Manager_Heartbeat_Handler},
		{MethodName: "GetTransactions", Handler: _Manager_GetTransactions_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "manager.proto",
}

// ManagerClient is the caller side of ManagerServer, used by the fabric's
// PeerClient implementation and by a fullnode-adjacent Manager peer.
type ManagerClient struct {
	cc *grpc.ClientConn
}

// NewManagerClient wraps an established connection.
func NewManagerClient(cc *grpc.ClientConn) *ManagerClient {
	return &ManagerClient{cc: cc}
}

func (c *ManagerClient) Heartbeat(ctx context.Context, in *HeartbeatRequest) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, "/txstream.Manager/Heartbeat", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ManagerClient) GetTransactions(ctx context.Context, in *GetTransactionsRequest) (*GetTransactionsResponse, error) {
	out := new(GetTransactionsResponse)
	if err := c.cc.Invoke(ctx, "/txstream.Manager/GetTransactions", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
