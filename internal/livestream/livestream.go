// Package livestream drives one client's live subscription: pulling
// contiguous transactions out of the Live Data ring buffer (falling
// forward to a coalesced upstream fetch at the head), batching them to a
// byte budget, and pushing each batch to the client's send side until the
// client disconnects, falls too far behind, or an optional end_version is
// reached.
package livestream

import (
	"context"
	"time"

	"github.com/cuemby/txstream/internal/fabric"
	"github.com/cuemby/txstream/internal/livecache"
	"github.com/cuemby/txstream/internal/txerrors"
	"github.com/cuemby/txstream/internal/txn"
)

// PollBackoff is how long the stream sleeps after a head fetch comes back
// empty (the upstream Manager has nothing new yet).
const PollBackoff = 100 * time.Millisecond

// FarFutureSlack bounds how far beyond the fabric's known latest version a
// requested start_version may sit before it is rejected outright, rather
// than accepted and left to poll forever for a version that may never
// exist.
const FarFutureSlack = 10_000

// DefaultMaxBytesPerSend is used when a request does not specify one.
const DefaultMaxBytesPerSend int64 = 20 << 20

// DefaultBatchSize is the per-message transaction-count cap used when a
// request does not specify one.
const DefaultBatchSize = 10_000

// Sender is the outbound half of one client's stream, implemented by
// internal/rpcfront over the client's gRPC send stream.
type Sender interface {
	Send(batch []txn.Transaction) error
}

// Request describes one client's subscription.
type Request struct {
	StartVersion    uint64
	EndVersion      *uint64
	MaxBytesPerSend int64
	BatchSize       uint32
}

// Stream runs a single client's live subscription to completion.
type Stream struct {
	cache  *livecache.Cache
	fabric *fabric.Fabric
	sender Sender
	req    Request
}

// New builds a Stream. Call Run to drive it.
func New(cache *livecache.Cache, fab *fabric.Fabric, sender Sender, req Request) *Stream {
	if req.MaxBytesPerSend <= 0 {
		req.MaxBytesPerSend = DefaultMaxBytesPerSend
	}
	if req.BatchSize == 0 {
		req.BatchSize = DefaultBatchSize
	}
	return &Stream{cache: cache, fabric: fab, sender: sender, req: req}
}

// Run blocks until the client's end_version is reached, the send side
// fails, the requested range falls behind the ring's retention floor, or
// ctx is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	if s.req.StartVersion > s.fabric.KnownLatestVersion()+FarFutureSlack {
		return txerrors.ErrFarFuture
	}

	handle := s.fabric.RegisterStream(s.req.StartVersion, s.req.EndVersion)
	defer s.fabric.DeregisterStream(handle.ID)

	current := s.req.StartVersion
	for {
		if s.req.EndVersion != nil && current >= *s.req.EndVersion {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if current < s.cache.StartVersion() {
			return txerrors.ErrTooOld
		}

		if current >= s.cache.EndVersion() {
			chunk, err := s.cache.FetchHead(ctx, current)
			if err != nil {
				return err
			}
			if len(chunk) == 0 {
				select {
				case <-time.After(PollBackoff):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}

		batch := s.drainBatch(current)
		if len(batch) == 0 {
			continue
		}
		if err := s.sender.Send(batch); err != nil {
			return err
		}
		current = batch[len(batch)-1].Version() + 1
		s.fabric.UpdateStreamVersion(handle.ID, current)
	}
}

// drainBatch pulls consecutive available versions starting at from, up to
// the byte budget, the batch_size transaction-count cap, and (if set)
// end_version.
func (s *Stream) drainBatch(from uint64) []txn.Transaction {
	var batch []txn.Transaction
	var size int64
	v := from
	for uint32(len(batch)) < s.req.BatchSize {
		if s.req.EndVersion != nil && v >= *s.req.EndVersion {
			break
		}
		t, ok := s.cache.GetData(v)
		if !ok {
			break
		}
		batch = append(batch, t)
		size += int64(t.EncodedLen())
		v++
		if size >= s.req.MaxBytesPerSend {
			break
		}
	}
	return batch
}
