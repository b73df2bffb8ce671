package rpcfront

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/txstream/internal/dataservice"
	"github.com/cuemby/txstream/internal/fabric"
	"github.com/cuemby/txstream/internal/pb"
	"github.com/cuemby/txstream/internal/txerrors"
	"github.com/cuemby/txstream/internal/txn"
)

// managerServer implements pb.ManagerServer over the metadata fabric and
// the Manager tier's read path.
type managerServer struct {
	pb.UnimplementedManagerServer
	fab  *fabric.Fabric
	data *dataservice.Service
	log  zerolog.Logger
}

// NewManagerServer builds the Manager RPC implementation.
func NewManagerServer(fab *fabric.Fabric, data *dataservice.Service, log zerolog.Logger) pb.ManagerServer {
	return &managerServer{fab: fab, data: data, log: log.With().Str("component", "rpcfront.manager").Logger()}
}

func (s *managerServer) Heartbeat(ctx context.Context, req *pb.HeartbeatRequest) (*pb.HeartbeatResponse, error) {
	if req.Address == "" {
		return nil, toStatus(fmt.Errorf("heartbeat: %w: address is required", txerrors.ErrBadRequest))
	}
	if err := s.fab.HandleHeartbeat(fabric.ServiceType(req.ServiceType), req.Address, req.KnownLatestVersion); err != nil {
		return nil, toStatus(err)
	}
	return &pb.HeartbeatResponse{KnownLatestVersion: s.fab.KnownLatestVersion()}, nil
}

func (s *managerServer) GetTransactions(ctx context.Context, req *pb.GetTransactionsRequest) (*pb.GetTransactionsResponse, error) {
	txns, err := s.data.GetTransactions(ctx, req.StartVersion, req.MaxSizeBytes)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetTransactionsResponse{Transactions: toWireTransactions(txns)}, nil
}

func toWireTransactions(txns []txn.Transaction) []pb.Transaction {
	out := make([]pb.Transaction, len(txns))
	for i, t := range txns {
		out[i] = pb.Transaction{Version: t.Version(), Data: t.Bytes()}
	}
	return out
}

func fromWireTransactions(txns []pb.Transaction) []txn.Transaction {
	out := make([]txn.Transaction, len(txns))
	for i, t := range txns {
		out[i] = txn.New(t.Version, t.Data)
	}
	return out
}
