package rulestore

import (
	"context"
	"strings"
	"time"

	"github.com/boltdb/bolt"

	"github.com/grl-engine/grlrules/internal/logging"
)

// BoltRepository implements Repository using boltdb, one bucket per
// rule Name holding version-string keys mapped to GRL source bytes.
// Grounded directly on storage/bolt/bolt.go's BoltStorage: same
// Options/Open shape, same Update/View transaction style, same
// Log(INFO|..., "op", ...) call convention.
type BoltRepository struct {
	db       *bolt.DB
	Filename string
}

var DefaultOptions = &bolt.Options{
	Timeout: 5 * time.Second,
}

func NewBoltRepository(filename string) (*BoltRepository, error) {
	logging.Log(logging.INFO|logging.RULESTORE, "op", "rulestore.NewBoltRepository", "filename", filename)
	db, err := bolt.Open(filename, 0644, DefaultOptions)
	if err != nil {
		logging.Log(logging.CRIT|logging.RULESTORE, "op", "rulestore.NewBoltRepository", "error", err, "file", filename)
		return nil, err
	}
	return &BoltRepository{db: db, Filename: filename}, nil
}

func (b *BoltRepository) Put(ctx context.Context, rec Record) error {
	timer := logging.NewTimer("rulestore.Bolt.Put")
	defer timer.Stop()
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(rec.Name))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(rec.Version), []byte(rec.Source))
	})
}

func (b *BoltRepository) Get(ctx context.Context, name, version string) (Record, bool, error) {
	var rec Record
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		v := bucket.Get([]byte(version))
		if v == nil {
			return nil
		}
		rec = Record{Name: name, Version: version, Source: string(v)}
		found = true
		return nil
	})
	return rec, found, err
}

func (b *BoltRepository) ListVersions(ctx context.Context, name string) ([]string, error) {
	var versions []string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			versions = append(versions, string(k))
		}
		return nil
	})
	return versions, err
}

func (b *BoltRepository) Remove(ctx context.Context, name, version string) error {
	logging.Log(logging.INFO|logging.RULESTORE, "op", "rulestore.Bolt.Remove", "name", name, "version", version)
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(version))
	})
}

func (b *BoltRepository) Clear(ctx context.Context, name string) (int64, error) {
	var n int64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		n = int64(bucket.Stats().KeyN)
		return tx.DeleteBucket([]byte(name))
	})
	return n, err
}

func (b *BoltRepository) Stats(ctx context.Context, name string) (Stats, error) {
	var stats Stats
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		stats.NumRecords = bucket.Stats().KeyN
		return nil
	})
	return stats, err
}

func (b *BoltRepository) Close(ctx context.Context) error {
	return b.db.Close()
}

func (b *BoltRepository) Health(ctx context.Context) error {
	return nil
}

// namespaceKey joins name and version the way a caller might want to
// log or key an external cache entry; bucket storage itself doesn't
// need this, but callers bridging to a flat key/value layer do.
func namespaceKey(name, version string) string {
	return strings.Join([]string{name, version}, "@")
}
