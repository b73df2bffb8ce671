package fabric

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PeerClient is the outbound side of a peer relationship: whatever the
// transport layer needs to implement so the fabric can heartbeat managers
// and ping everyone else. internal/rpcfront supplies the gRPC-backed
// implementation; tests supply fakes.
type PeerClient interface {
	Heartbeat(ctx context.Context, knownLatest uint64) (remoteKnownLatest uint64, err error)
	Ping(ctx context.Context, knownLatest uint64) (remoteKnownLatest uint64, err error)
	Close() error
}

// Dialer creates a PeerClient for a newly-seen address.
type Dialer func(addr string) (PeerClient, error)

// Snapshotter persists and restores the set of known peer addresses across
// restarts. See BoltSnapshotter for the bbolt-backed implementation.
type Snapshotter interface {
	Load() (map[ServiceType][]string, error)
	Save(svc ServiceType, addrs []string) error
}

type table struct {
	mu      sync.RWMutex
	entries map[string]*peerEntry
}

func newTable() *table { return &table{entries: make(map[string]*peerEntry)} }

func (t *table) getOrCreate(addr string, dial Dialer) (*peerEntry, error) {
	t.mu.RLock()
	e, ok := t.entries[addr]
	t.mu.RUnlock()
	if ok {
		return e, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[addr]; ok {
		return e, nil
	}
	client, err := dial(addr)
	if err != nil {
		return nil, err
	}
	e = newPeerEntry(addr, client)
	t.entries[addr] = e
	return e, nil
}

func (t *table) addrs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries))
	for a := range t.entries {
		out = append(out, a)
	}
	return out
}

func (t *table) snapshot() []*peerEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*peerEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// Fabric tracks every peer the process knows about across the four service
// tables, folds known_latest_version up from every peer report (inbound
// heartbeats and the responses to its own heartbeats and pings), and runs the periodic heartbeat/ping loop that keeps those
// tables warm.
type Fabric struct {
	dial Dialer
	snap Snapshotter
	log  zerolog.Logger

	managers    *table
	fullnodes   *table
	live        *table
	historical  *table

	knownLatestVersion atomic.Uint64

	streamsMu sync.RWMutex
	streams   map[uuid.UUID]*ActiveStream
}

// New builds a Fabric. snap may be nil to disable restart-recovery
// persistence.
func New(dial Dialer, snap Snapshotter, log zerolog.Logger) *Fabric {
	return &Fabric{
		dial:       dial,
		snap:       snap,
		log:        log.With().Str("component", "fabric").Logger(),
		managers:   newTable(),
		fullnodes:  newTable(),
		live:       newTable(),
		historical: newTable(),
		streams:    make(map[uuid.UUID]*ActiveStream),
	}
}

func (f *Fabric) tableFor(svc ServiceType) *table {
	switch svc {
	case ServiceTypeGrpcManager:
		return f.managers
	case ServiceTypeFullnode:
		return f.fullnodes
	case ServiceTypeLiveDataService:
		return f.live
	case ServiceTypeHistoricalDataService:
		return f.historical
	default:
		return nil
	}
}

// Seed registers a peer address without waiting for its first
// heartbeat/ping, e.g. from static configuration.
func (f *Fabric) Seed(svc ServiceType, addr string) error {
	tbl := f.tableFor(svc)
	if tbl == nil {
		return fmt.Errorf("fabric: unknown service type %v", svc)
	}
	_, err := tbl.getOrCreate(addr, f.dial)
	return err
}

// Restore loads any persisted peer addresses and seeds the tables with
// them. Call once at startup before Run.
func (f *Fabric) Restore() error {
	if f.snap == nil {
		return nil
	}
	byType, err := f.snap.Load()
	if err != nil {
		return err
	}
	for svc, addrs := range byType {
		for _, a := range addrs {
			if err := f.Seed(svc, a); err != nil {
				f.log.Warn().Err(err).Str("addr", a).Msg("failed to restore peer")
			}
		}
	}
	return nil
}

func (f *Fabric) persist(svc ServiceType) {
	if f.snap == nil {
		return
	}
	if err := f.snap.Save(svc, f.tableFor(svc).addrs()); err != nil {
		f.log.Warn().Err(err).Str("service_type", svc.String()).Msg("failed to persist peer table")
	}
}

// FetchMaxKnownLatestVersion folds v into the process-wide
// known_latest_version using fetch-max semantics and returns the value
// after the update.
func (f *Fabric) FetchMaxKnownLatestVersion(v uint64) uint64 {
	for {
		cur := f.knownLatestVersion.Load()
		if v <= cur {
			return cur
		}
		if f.knownLatestVersion.CompareAndSwap(cur, v) {
			return v
		}
	}
}

// KnownLatestVersion returns the current process-wide high-water mark.
func (f *Fabric) KnownLatestVersion() uint64 {
	return f.knownLatestVersion.Load()
}

// HandleHeartbeat records an inbound heartbeat from addr, folding its
// reported known_latest_version into ours. It registers the peer as new if
// this is the first time it has been seen.
func (f *Fabric) HandleHeartbeat(svc ServiceType, addr string, remoteKnownLatest uint64) error {
	tbl := f.tableFor(svc)
	if tbl == nil {
		return fmt.Errorf("fabric: unknown service type %v", svc)
	}
	wasNew := false
	tbl.mu.RLock()
	_, existed := tbl.entries[addr]
	tbl.mu.RUnlock()
	wasNew = !existed

	e, err := tbl.getOrCreate(addr, f.dial)
	if err != nil {
		return err
	}
	e.pushState(PeerState{Timestamp: time.Now(), KnownLatestVersion: remoteKnownLatest})
	f.FetchMaxKnownLatestVersion(remoteKnownLatest)

	if wasNew {
		f.persist(svc)
	}
	return nil
}

// RandomFullnode returns a uniformly random fullnode client, or false if
// none are known.
func (f *Fabric) RandomFullnode() (PeerClient, bool) {
	entries := f.fullnodes.snapshot()
	if len(entries) == 0 {
		return nil, false
	}
	return entries[rand.Intn(len(entries))].client, true
}

// Run heartbeats every manager once per tick and pings any non-manager peer
// whose last recorded state is stale, fanning each check out to its own
// goroutine so one slow peer never delays the others.
func (f *Fabric) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *Fabric) tick(ctx context.Context) {
	var wg sync.WaitGroup

	for _, e := range f.managers.snapshot() {
		wg.Add(1)
		go func(e *peerEntry) {
			defer wg.Done()
			f.heartbeatOne(ctx, e)
		}(e)
	}

	for _, tbl := range []*table{f.fullnodes, f.live, f.historical} {
		for _, e := range tbl.snapshot() {
			if st, ok := e.lastState(); ok && time.Since(st.Timestamp) < StaleAfter {
				continue
			}
			wg.Add(1)
			go func(e *peerEntry) {
				defer wg.Done()
				f.pingOne(ctx, e)
			}(e)
		}
	}

	wg.Wait()
}

func (f *Fabric) heartbeatOne(ctx context.Context, e *peerEntry) {
	remote, err := e.client.Heartbeat(ctx, f.KnownLatestVersion())
	if err != nil {
		f.log.Warn().Err(err).Str("addr", e.addr).Msg("heartbeat failed")
		return
	}
	e.pushState(PeerState{Timestamp: time.Now(), KnownLatestVersion: remote})
	f.FetchMaxKnownLatestVersion(remote)
}

func (f *Fabric) pingOne(ctx context.Context, e *peerEntry) {
	remote, err := e.client.Ping(ctx, f.KnownLatestVersion())
	if err != nil {
		f.log.Warn().Err(err).Str("addr", e.addr).Msg("ping failed")
		return
	}
	e.pushState(PeerState{Timestamp: time.Now(), KnownLatestVersion: remote})
	f.FetchMaxKnownLatestVersion(remote)
}

// ActiveStream is a registered live-streaming client, tracked so the
// fabric can report stream counts and so LiveStreamer can publish its
// progress for observability.
type ActiveStream struct {
	ID              uuid.UUID
	StartingVersion uint64
	EndVersion      *uint64

	current atomic.Uint64
}

// Current returns the next version this stream will deliver: its starting
// version until the first batch is sent, then one past the last delivered.
func (s *ActiveStream) Current() uint64 { return s.current.Load() }

// RegisterStream adds a new active stream and returns its handle.
func (f *Fabric) RegisterStream(startingVersion uint64, endVersion *uint64) *ActiveStream {
	s := &ActiveStream{ID: uuid.New(), StartingVersion: startingVersion, EndVersion: endVersion}
	s.current.Store(startingVersion)

	f.streamsMu.Lock()
	f.streams[s.ID] = s
	f.streamsMu.Unlock()
	return s
}

// UpdateStreamVersion records how far a stream has progressed.
func (f *Fabric) UpdateStreamVersion(id uuid.UUID, current uint64) {
	f.streamsMu.RLock()
	s, ok := f.streams[id]
	f.streamsMu.RUnlock()
	if ok {
		s.current.Store(current)
	}
}

// DeregisterStream removes a stream once its client disconnects or the
// stream ends.
func (f *Fabric) DeregisterStream(id uuid.UUID) {
	f.streamsMu.Lock()
	delete(f.streams, id)
	f.streamsMu.Unlock()
}

// ActiveStreams returns a snapshot of every currently registered stream.
func (f *Fabric) ActiveStreams() []*ActiveStream {
	f.streamsMu.RLock()
	defer f.streamsMu.RUnlock()
	out := make([]*ActiveStream, 0, len(f.streams))
	for _, s := range f.streams {
		out = append(out, s)
	}
	return out
}
