// Package txerrors classifies the error kinds described for this pipeline:
// transient upstream failures, client errors, and invariant violations. The
// rpcfront package translates these into gRPC status codes at the edge.
package txerrors

import "errors"

// ErrTooOld is returned when a live stream's next version falls below the
// Live Data ring cache's retention floor.
var ErrTooOld = errors.New("requested data is too old")

// ErrFarFuture is returned when starting_version is further ahead of
// known_latest_version than the pipeline is willing to block for.
var ErrFarFuture = errors.New("starting_version cannot be set to a far future version")

// ErrFileStoreUnavailable marks a file-store read that never produced a
// chunk after retries were exhausted: a corrupted or missing batch.
var ErrFileStoreUnavailable = errors.New("filestore unavailable or data corrupted")

// ErrBadRequest marks a malformed client request (invalid_argument).
var ErrBadRequest = errors.New("bad request")
