package rpcfront

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/txstream/internal/fabric"
	"github.com/cuemby/txstream/internal/livecache"
	"github.com/cuemby/txstream/internal/pb"
	"github.com/cuemby/txstream/internal/txn"
)

// Dial opens a plaintext connection to a peer and forces the JSON codec
// registered by internal/pb so every RPC on the connection bypasses the
// default protobuf wire format.
func Dial(addr string) (*grpc.ClientConn, error) {
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(pb.Codec())),
	)
	if err != nil {
		return nil, fmt.Errorf("rpcfront: dial %s: %w", addr, err)
	}
	return cc, nil
}

// peerClient adapts a *pb.ManagerClient to fabric.PeerClient, for peers
// that are themselves managers.
type peerClient struct {
	cc     *grpc.ClientConn
	client *pb.ManagerClient
}

// ManagerDialer is a fabric.Dialer for manager-to-manager peers.
func ManagerDialer(addr string) (fabric.PeerClient, error) {
	cc, err := Dial(addr)
	if err != nil {
		return nil, err
	}
	return &peerClient{cc: cc, client: pb.NewManagerClient(cc)}, nil
}

func (p *peerClient) Heartbeat(ctx context.Context, knownLatest uint64) (uint64, error) {
	resp, err := p.client.Heartbeat(ctx, &pb.HeartbeatRequest{
		ServiceType:        pb.ServiceTypeGrpcManager,
		KnownLatestVersion: knownLatest,
	})
	if err != nil {
		return 0, err
	}
	return resp.KnownLatestVersion, nil
}

func (p *peerClient) Ping(ctx context.Context, knownLatest uint64) (uint64, error) {
	return p.Heartbeat(ctx, knownLatest)
}

func (p *peerClient) Close() error {
	return p.cc.Close()
}

// dataServicePeerClient adapts a *pb.DataServiceClient to fabric.PeerClient,
// for peers that are live or historical data services.
type dataServicePeerClient struct {
	cc     *grpc.ClientConn
	client *pb.DataServiceClient
}

// DataServiceDialer is a fabric.Dialer for data-service peers.
func DataServiceDialer(addr string) (fabric.PeerClient, error) {
	cc, err := Dial(addr)
	if err != nil {
		return nil, err
	}
	return &dataServicePeerClient{cc: cc, client: pb.NewDataServiceClient(cc)}, nil
}

func (p *dataServicePeerClient) Heartbeat(ctx context.Context, knownLatest uint64) (uint64, error) {
	return p.Ping(ctx, knownLatest)
}

func (p *dataServicePeerClient) Ping(ctx context.Context, knownLatest uint64) (uint64, error) {
	resp, err := p.client.Ping(ctx, &pb.PingRequest{KnownLatestVersion: knownLatest})
	if err != nil {
		return 0, err
	}
	return resp.KnownLatestVersion, nil
}

func (p *dataServicePeerClient) Close() error {
	return p.cc.Close()
}

// FullnodeClient adapts a *pb.ManagerClient to dataservice.FullnodeClient,
// used by the Manager tier's ingest loop and by its fall-forward read for
// requests past the cache head while the cache lags the chain tip.
type FullnodeClient struct {
	client *pb.ManagerClient
}

// NewFullnodeClient wraps a connection already dialed to a fullnode's
// Manager-shaped RPC surface.
func NewFullnodeClient(cc *grpc.ClientConn) *FullnodeClient {
	return &FullnodeClient{client: pb.NewManagerClient(cc)}
}

func (f *FullnodeClient) GetTransactionsChunk(ctx context.Context, startVersion uint64) ([]txn.Transaction, error) {
	resp, err := f.client.GetTransactions(ctx, &pb.GetTransactionsRequest{StartVersion: startVersion})
	if err != nil {
		return nil, err
	}
	return fromWireTransactions(resp.Transactions), nil
}

// ManagerFetchFunc adapts a Manager connection to livecache.FetchFunc: the
// Live Data tier's coalesced head-fetch calls through to the Manager's
// GetTransactions the same way a fallen-behind client would.
func ManagerFetchFunc(cc *grpc.ClientConn) livecache.FetchFunc {
	client := pb.NewManagerClient(cc)
	return func(ctx context.Context, fromVersion uint64) ([]txn.Transaction, error) {
		resp, err := client.GetTransactions(ctx, &pb.GetTransactionsRequest{StartVersion: fromVersion})
		if err != nil {
			return nil, err
		}
		return fromWireTransactions(resp.Transactions), nil
	}
}

// historicalStreamer adapts a *pb.DataServiceClient to HistoricalStreamer.
type historicalStreamer struct {
	client *pb.DataServiceClient
}

// NewHistoricalStreamer wraps a connection dialed to a historical data
// service's DataService RPC surface.
func NewHistoricalStreamer(cc *grpc.ClientConn) HistoricalStreamer {
	return &historicalStreamer{client: pb.NewDataServiceClient(cc)}
}

func (h *historicalStreamer) StreamTransactions(ctx context.Context, req *pb.StreamTransactionsRequest) (pb.DataService_StreamTransactionsClient, error) {
	return h.client.StreamTransactions(ctx, req)
}
