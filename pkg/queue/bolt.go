package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/pgsyncd/pkg/types"
)

// BoltQueue is the single-process durable queue backend: entries for one
// sync live in their own bbolt bucket, keyed by an 8-byte big-endian
// sequence number so bucket iteration order is insertion order.
type BoltQueue struct {
	db     *bolt.DB
	bucket []byte
}

// NewBoltQueue opens (creating if necessary) the bucket for syncName in
// db. The caller owns db's lifecycle.
func NewBoltQueue(db *bolt.DB, syncName string) (*BoltQueue, error) {
	bucket := []byte("queue:" + syncName)
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating queue bucket for %q: %w", syncName, err)
	}
	return &BoltQueue{db: db, bucket: bucket}, nil
}

func (q *BoltQueue) Push(ctx context.Context, entries []types.Payload) error {
	if len(entries) == 0 {
		return nil
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(q.bucket)
		for _, entry := range entries {
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("allocating queue sequence: %w", err)
			}
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshaling queue entry: %w", err)
			}
			if err := b.Put(sequenceKey(seq), data); err != nil {
				return fmt.Errorf("writing queue entry: %w", err)
			}
		}
		return nil
	})
}

func (q *BoltQueue) Pop(ctx context.Context, max int) ([]types.Payload, error) {
	if max <= 0 {
		return nil, nil
	}
	var out []types.Payload
	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(q.bucket)
		c := b.Cursor()
		var keys [][]byte
		for k, v := c.First(); k != nil && len(out) < max; k, v = c.Next() {
			var entry types.Payload
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling queue entry: %w", err)
			}
			out = append(out, entry)
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("deleting popped queue entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (q *BoltQueue) Size(ctx context.Context) (int, error) {
	var n int
	err := q.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(q.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (q *BoltQueue) Delete(ctx context.Context) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(q.bucket) == nil {
			return nil
		}
		return tx.DeleteBucket(q.bucket)
	})
}

func sequenceKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
