// Package memory provides an in-memory implementation of db.SnapshotStore.
package memory

import (
	"github.com/Bren2010/ageingsim/db"
	"github.com/Bren2010/ageingsim/network"
)

// SnapshotStore keeps a run's snapshot history in a plain slice. It is the
// default store when no --leveldb-dir is configured.
type SnapshotStore struct {
	records []db.Record
}

// New creates an empty in-memory snapshot store.
func New() *SnapshotStore {
	return &SnapshotStore{}
}

func (s *SnapshotStore) Append(step int, snap network.Snapshot) error {
	s.records = append(s.records, db.Record{Step: step, Snapshot: snap})
	return nil
}

func (s *SnapshotStore) List() ([]db.Record, error) {
	out := make([]db.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *SnapshotStore) Close() error { return nil }
