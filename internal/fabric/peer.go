// Package fabric implements the metadata/heartbeat fabric tying peers
// together: four peer tables (managers, fullnodes, live and historical
// data services), a heartbeat/ping loop, and the process-wide
// known_latest_version that folds in maxima from every source.
package fabric

import (
	"sync"
	"time"
)

// ServiceType identifies what kind of peer an entry represents, matching
// the heartbeat's service_info.service_type.
type ServiceType int

const (
	ServiceTypeGrpcManager ServiceType = iota
	ServiceTypeFullnode
	ServiceTypeLiveDataService
	ServiceTypeHistoricalDataService
)

func (s ServiceType) String() string {
	switch s {
	case ServiceTypeGrpcManager:
		return "GrpcManagerInfo"
	case ServiceTypeFullnode:
		return "FullnodeInfo"
	case ServiceTypeLiveDataService:
		return "LiveDataServiceInfo"
	case ServiceTypeHistoricalDataService:
		return "HistoricalDataServiceInfo"
	default:
		return "Unknown"
	}
}

// MaxStatesToKeep bounds the per-peer recent-state deque (§4.6).
const MaxStatesToKeep = 100

// StaleAfter is how long since a peer's last recorded state before the
// main loop pings it again.
const StaleAfter = 5 * time.Second

// PeerState is one recorded report from a peer, pushed on heartbeat/ping.
type PeerState struct {
	Timestamp          time.Time
	KnownLatestVersion uint64
}

// peerEntry is a single row of a peer table: a lazily-connected client
// handle plus a bounded deque of recent states, mutated under the entry's
// own lock. The outer table is a plain map guarded by a sync.RWMutex, not a
// lock-free map; the entry lock keeps state updates off that table lock.
type peerEntry struct {
	mu     sync.Mutex
	addr   string
	client PeerClient
	states []PeerState
}

func newPeerEntry(addr string, client PeerClient) *peerEntry {
	return &peerEntry{addr: addr, client: client}
}

func (e *peerEntry) pushState(s PeerState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, s)
	if len(e.states) > MaxStatesToKeep {
		e.states = e.states[len(e.states)-MaxStatesToKeep:]
	}
}

func (e *peerEntry) lastState() (PeerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.states) == 0 {
		return PeerState{}, false
	}
	return e.states[len(e.states)-1], true
}

func (e *peerEntry) recentStates() []PeerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PeerState, len(e.states))
	copy(out, e.states)
	return out
}
