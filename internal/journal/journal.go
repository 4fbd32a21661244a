// Package journal is the durable per-instance event log backed by
// bbolt. Keys are snowflake event ids, so iteration order is emission
// order and the purge job can derive age from the key alone.
package journal

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

type Journal struct {
	db *bolt.DB
}

// Open opens (or creates) the journal file.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "journal: open")
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func bucketName(instanceID int64) []byte {
	return []byte(strconv.FormatInt(instanceID, 10))
}

func key(eventID int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(eventID))
	return k[:]
}

// Append stores one serialized envelope under the instance's bucket.
func (j *Journal) Append(instanceID, eventID int64, payload []byte) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(instanceID))
		if err != nil {
			return err
		}
		return b.Put(key(eventID), payload)
	})
}

// Recent returns up to limit envelopes for the instance, oldest first.
func (j *Journal) Recent(instanceID int64, limit int) ([][]byte, error) {
	var out [][]byte
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(instanceID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		// walk backwards collecting the newest N, then reverse
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			cp := make([]byte, len(v))
			copy(cp, v)
			out = append(out, cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, jj := 0, len(out)-1; i < jj; i, jj = i+1, jj-1 {
		out[i], out[jj] = out[jj], out[i]
	}
	return out, nil
}

// Drop removes the instance's bucket entirely (logout/delete).
func (j *Journal) Drop(instanceID int64) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(bucketName(instanceID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// PurgeOlderThan deletes envelopes whose snowflake key timestamp is
// before cutoff, across all instances. Returns the number removed.
func (j *Journal) PurgeOlderThan(cutoff time.Time) (int, error) {
	removed := 0
	err := j.db.Update(func(tx *bolt.Tx) error {
		return tx.ForEach(func(_ []byte, b *bolt.Bucket) error {
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				id := snowflake.ParseInt64(int64(binary.BigEndian.Uint64(k)))
				if time.UnixMilli(id.Time()).After(cutoff) {
					// keys are time ordered, the rest are newer
					break
				}
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
			return nil
		})
	})
	return removed, err
}
