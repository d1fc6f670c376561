package db

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Bren2010/ageingsim/network"
)

// ldbConn is a wrapper around a base LevelDB database that handles batching
// writes between commits transparently.
type ldbConn struct {
	conn  *leveldb.DB
	batch map[string][]byte
}

func newLDBConn(conn *leveldb.DB) *ldbConn {
	return &ldbConn{conn, make(map[string][]byte)}
}

func (c *ldbConn) Put(key string, value []byte) {
	c.batch[key] = value
}

func (c *ldbConn) Commit() error {
	b := new(leveldb.Batch)
	for key, value := range c.batch {
		b.Put([]byte(key), value)
	}
	if err := c.conn.Write(b, nil); err != nil {
		return err
	}
	c.batch = make(map[string][]byte)
	return nil
}

// ldbSnapshotStore implements SnapshotStore over a LevelDB database. Keys
// are the step number encoded as a big-endian uint64, so List can recover
// insertion order with a plain range scan instead of tracking it separately.
type ldbSnapshotStore struct {
	conn *ldbConn
}

// NewLDBSnapshotStore opens (or creates) a LevelDB database at file to hold
// a run's snapshot history.
func NewLDBSnapshotStore(file string) (SnapshotStore, error) {
	conn, err := leveldb.OpenFile(file, nil)
	if errors.IsCorrupted(err) {
		conn, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("db: opening leveldb at %s: %w", file, err)
	}
	return &ldbSnapshotStore{newLDBConn(conn)}, nil
}

func stepKey(step int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(step))
	return key
}

func (ldb *ldbSnapshotStore) Append(step int, snap network.Snapshot) error {
	raw, err := json.Marshal(Record{Step: step, Snapshot: snap})
	if err != nil {
		return err
	}
	ldb.conn.Put(string(stepKey(step)), raw)
	return ldb.conn.Commit()
}

func (ldb *ldbSnapshotStore) List() ([]Record, error) {
	var out []Record
	iter := ldb.conn.conn.NewIterator(&util.Range{}, nil)
	defer iter.Release()
	for iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("db: decoding snapshot record: %w", err)
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func (ldb *ldbSnapshotStore) Close() error {
	return ldb.conn.conn.Close()
}
