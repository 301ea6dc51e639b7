package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	windowBucket = "page_windows"
	// expiry | first | last, each a big-endian unix second.
	windowValueBytes = 24
)

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	windowTTL       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(windowBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		windowTTL:       opts.WindowTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// GetWindow returns the cached window of a page; expired entries are dropped.
func (b *boltStore) GetWindow(ctx context.Context, board string, page int) (domain.PageWindow, bool, error) {
	if b == nil || b.db == nil {
		return domain.PageWindow{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.PageWindow{}, false, err
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return domain.PageWindow{}, false, err
	}

	var (
		w     domain.PageWindow
		found bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(windowBucket))
		if bucket == nil {
			return fmt.Errorf("window bucket missing")
		}

		key := windowKey(board, page)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		expiry, decoded, ok := decodeWindow(value)
		if !ok || !expiry.After(now) {
			return bucket.Delete(key)
		}

		w, found = decoded, true
		return nil
	})
	return w, found, err
}

// PutWindow stores the window of a page for the configured TTL.
func (b *boltStore) PutWindow(ctx context.Context, board string, page int, w domain.PageWindow) error {
	if b == nil || b.db == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(windowBucket))
		if bucket == nil {
			return fmt.Errorf("window bucket missing")
		}
		return bucket.Put(windowKey(board, page), encodeWindow(now.Add(b.windowTTL), w))
	})
}

// maybeCleanupExpired removes expired windows on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(windowBucket))
		if bucket == nil {
			return fmt.Errorf("window bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, _, ok := decodeWindow(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func windowKey(board string, page int) []byte {
	return []byte(fmt.Sprintf("%s/%010d", board, page))
}

func encodeWindow(expiry time.Time, w domain.PageWindow) []byte {
	buf := make([]byte, windowValueBytes)
	binary.BigEndian.PutUint64(buf[0:8], uint64(expiry.Unix()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(w.First.Unix()))
	binary.BigEndian.PutUint64(buf[16:24], uint64(w.Last.Unix()))
	return buf
}

// decodeWindow decodes the expiry and window from the stored byte slice.
func decodeWindow(value []byte) (time.Time, domain.PageWindow, bool) {
	if len(value) != windowValueBytes {
		return time.Time{}, domain.PageWindow{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[0:8]))
	if unix <= 0 {
		return time.Time{}, domain.PageWindow{}, false
	}
	w := domain.PageWindow{
		First: time.Unix(int64(binary.BigEndian.Uint64(value[8:16])), 0),
		Last:  time.Unix(int64(binary.BigEndian.Uint64(value[16:24])), 0),
	}
	return time.Unix(unix, 0), w, true
}
