package fabric

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketPeers = []byte("peers")

// BoltSnapshotter persists the peer-address tables to a bbolt file so a
// restarted process can reconnect to its managers and fullnodes without
// waiting to be re-seeded from configuration or rediscovered via gossip.
// It holds no per-peer state history; only the address list survives a
// restart, the same way the bbolt-backed store in the pack's cluster
// implementation persists durable identity separately from ephemeral
// runtime state.
type BoltSnapshotter struct {
	db *bolt.DB
}

// NewBoltSnapshotter opens (creating if needed) a bbolt file under dataDir.
func NewBoltSnapshotter(dataDir string) (*BoltSnapshotter, error) {
	dbPath := filepath.Join(dataDir, "fabric.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("fabric: open snapshot db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPeers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltSnapshotter{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltSnapshotter) Close() error { return s.db.Close() }

func keyFor(svc ServiceType) []byte { return []byte(svc.String()) }

// Save overwrites the persisted address list for one service type.
func (s *BoltSnapshotter) Save(svc ServiceType, addrs []string) error {
	data, err := json.Marshal(addrs)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeers).Put(keyFor(svc), data)
	})
}

// Load returns every persisted address list, keyed by service type.
func (s *BoltSnapshotter) Load() (map[ServiceType][]string, error) {
	out := make(map[ServiceType][]string)
	types := []ServiceType{
		ServiceTypeGrpcManager,
		ServiceTypeFullnode,
		ServiceTypeLiveDataService,
		ServiceTypeHistoricalDataService,
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPeers)
		for _, t := range types {
			data := b.Get(keyFor(t))
			if data == nil {
				continue
			}
			var addrs []string
			if err := json.Unmarshal(data, &addrs); err != nil {
				return fmt.Errorf("fabric: decode snapshot for %s: %w", t, err)
			}
			out[t] = addrs
		}
		return nil
	})
	return out, err
}
