// Package rpcfront wires the Manager, DataService and RawData RPCs (defined
// in internal/pb) to the domain packages: internal/fabric for the control
// plane, internal/dataservice and internal/managercache for the Manager's
// read path, and internal/livecache/internal/livestream for the Live Data
// tier's subscription path.
package rpcfront

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/txstream/internal/txerrors"
)

// toStatus translates a domain sentinel error into the gRPC status code a
// client should act on. Anything unrecognized becomes INTERNAL rather than
// leaking an implementation detail across the wire.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, txerrors.ErrBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, txerrors.ErrFarFuture):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, txerrors.ErrTooOld):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, txerrors.ErrFileStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
