// Package db implements storage for a run's structural snapshot history, so
// section counts and membership sizes can be inspected after a simulation
// finishes.
package db

import "github.com/Bren2010/ageingsim/network"

// Record pairs a simulation step with the snapshot taken at the end of it.
type Record struct {
	Step     int
	Snapshot network.Snapshot
}

// SnapshotStore is the interface for durable storage of a run's snapshot
// history.
type SnapshotStore interface {
	Append(step int, snap network.Snapshot) error
	List() ([]Record, error)
	Close() error
}
