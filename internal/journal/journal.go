// Package journal persists an append-only record of lease lifecycle events
// for diagnostics. The state machine never reads it back; a crash loses
// nothing but operator history.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/athena-dhcpd/athena-dhcpc/internal/events"
)

var bucketEntries = []byte("entries")

// Entry is one journalled lifecycle event.
type Entry struct {
	Seq          uint64    `json:"seq"`
	Time         time.Time `json:"time"`
	Type         string    `json:"type"`
	Interface    string    `json:"interface,omitempty"`
	Addr         string    `json:"addr,omitempty"`
	Server       string    `json:"server,omitempty"`
	LeaseSeconds int64     `json:"lease_seconds,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// Journal is a BoltDB-backed append-only event log.
type Journal struct {
	db *bolt.DB
}

// Open opens or creates the journal database.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		NoSync: false,
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing journal bucket: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append writes one entry, assigning it the next sequence number.
func (j *Journal) Append(e Entry) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating journal sequence: %w", err)
		}
		e.Seq = seq
		if e.Time.IsZero() {
			e.Time = time.Now()
		}
		data, err := json.Marshal(&e)
		if err != nil {
			return fmt.Errorf("marshalling journal entry: %w", err)
		}
		return b.Put(seqKey(seq), data)
	})
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshalling journal entry %d: %w",
					binary.BigEndian.Uint64(k), err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of journalled entries.
func (j *Journal) Count() (int, error) {
	var n int
	err := j.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketEntries).Stats().KeyN
		return nil
	})
	return n, err
}

// Prune removes the oldest entries until at most keep remain.
func (j *Journal) Prune(keep int) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		excess := b.Stats().KeyN - keep
		c := b.Cursor()
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("pruning journal entry: %w", err)
			}
			excess--
		}
		return nil
	})
}

// FromEvent converts a bus event into a journal entry.
func FromEvent(evt events.Event) Entry {
	e := Entry{
		Time:      evt.Timestamp,
		Type:      string(evt.Type),
		Interface: evt.Interface,
		Detail:    evt.Reason,
	}
	if b := evt.Binding; b != nil {
		e.Addr = b.Addr
		e.Server = b.Server
		e.LeaseSeconds = b.LeaseSeconds
	}
	if c := evt.Check; c != nil {
		e.Addr = c.Target
		e.Detail = c.Detail
	}
	return e
}

// Consume journals every event arriving on ch until it closes. Run in a
// goroutine; the onError callback (may be nil) sees write failures.
func (j *Journal) Consume(ch <-chan events.Event, onError func(error)) {
	for evt := range ch {
		if err := j.Append(FromEvent(evt)); err != nil && onError != nil {
			onError(err)
		}
	}
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
