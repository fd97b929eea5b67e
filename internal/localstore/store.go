// Package localstore implements the durable, locally authoritative feed
// collection on top of bbolt. Items live in the feed bucket keyed by id; a
// secondary index bucket orders them by the date field so pages and the sync
// watermark are cheap range scans.
package localstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dmitrijs2005/feedvault/internal/common"
	"github.com/dmitrijs2005/feedvault/internal/logging"
	"github.com/dmitrijs2005/feedvault/internal/models"
)

const (
	bucketFeed    = "feed"
	bucketDateIdx = "feed_date_idx"
)

// ChangeKind distinguishes create from update mutations.
type ChangeKind int

const (
	ChangeCreate ChangeKind = iota
	ChangeUpdate
)

func (k ChangeKind) String() string {
	if k == ChangeCreate {
		return "create"
	}
	return "update"
}

// Change describes one committed local mutation. Fields lists the modified
// field names for updates; it is empty for creates.
type Change struct {
	Kind   ChangeKind
	ID     string
	Fields []string
}

// Hook receives committed mutations. Hooks run synchronously after the
// enclosing transaction commits, in registration order.
type Hook func(Change)

// Store is one user's feed collection, scoped to a key fingerprint. A Store
// owns its bbolt file exclusively.
type Store struct {
	db   *bolt.DB
	path string
	log  logging.Logger

	mu       sync.RWMutex
	creating []Hook
	updating []Hook
}

// Open opens (creating if needed) the store file <dir>/<scope>.db.
func Open(dir, scope string, log logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	path := filepath.Join(dir, scope+".db")

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists([]byte(bucketFeed)); e != nil {
			return e
		}
		_, e := tx.CreateBucketIfNotExists([]byte(bucketDateIdx))
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{db: db, path: path, log: log}, nil
}

// OnCreating registers a hook for item creation events.
func (s *Store) OnCreating(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creating = append(s.creating, h)
}

// OnUpdating registers a hook for item update events.
func (s *Store) OnUpdating(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updating = append(s.updating, h)
}

func (s *Store) fire(changes []Change) {
	s.mu.RLock()
	creating := make([]Hook, len(s.creating))
	copy(creating, s.creating)
	updating := make([]Hook, len(s.updating))
	copy(updating, s.updating)
	s.mu.RUnlock()

	for _, c := range changes {
		hooks := creating
		if c.Kind == ChangeUpdate {
			hooks = updating
		}
		for _, h := range hooks {
			h(c)
		}
	}
}

// dateKey builds the secondary index key: 8-byte big-endian date + id, so a
// bolt cursor walks items in date order with the id as tie-break.
func dateKey(date int64, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(date))
	return append(key, id...)
}

// Get returns the item with the given id, or common.ErrorNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.FeedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var item *models.FeedItem
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketFeed)).Get([]byte(id))
		if data == nil {
			return common.ErrorNotFound
		}
		item = &models.FeedItem{}
		return json.Unmarshal(data, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetByPaymentID returns the first item with the given payment id, or
// common.ErrorNotFound.
func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*models.FeedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var found *models.FeedItem
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketFeed)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item models.FeedItem
			if e := json.Unmarshal(v, &item); e != nil {
				s.log.Warn(ctx, "skipping unreadable local record", "key", string(k), "error", e)
				continue
			}
			if item.PaymentID == paymentID {
				found = &item
				return nil
			}
		}
		return common.ErrorNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// putItem upserts one item inside tx and returns the resulting change.
func putItem(tx *bolt.Tx, item *models.FeedItem) (Change, error) {
	feed := tx.Bucket([]byte(bucketFeed))
	idx := tx.Bucket([]byte(bucketDateIdx))

	change := Change{Kind: ChangeCreate, ID: item.Id}

	if old := feed.Get([]byte(item.Id)); old != nil {
		var prev models.FeedItem
		if err := json.Unmarshal(old, &prev); err == nil {
			change.Kind = ChangeUpdate
			change.Fields = diffFields(&prev, item)
			if prev.Date != item.Date {
				if err := idx.Delete(dateKey(prev.Date, prev.Id)); err != nil {
					return change, err
				}
			}
		}
	}

	data, err := json.Marshal(item)
	if err != nil {
		return change, err
	}
	if err := feed.Put([]byte(item.Id), data); err != nil {
		return change, err
	}
	if err := idx.Put(dateKey(item.Date, item.Id), []byte(item.Id)); err != nil {
		return change, err
	}
	return change, nil
}

func diffFields(prev, next *models.FeedItem) []string {
	var fields []string
	if prev.Date != next.Date {
		fields = append(fields, "date")
	}
	if prev.Status != next.Status {
		fields = append(fields, "status")
	}
	if prev.OtplStatus != next.OtplStatus {
		fields = append(fields, "otplStatus")
	}
	if prev.TxHash != next.TxHash {
		fields = append(fields, "txHash")
	}
	if prev.PaymentID != next.PaymentID {
		fields = append(fields, "paymentId")
	}
	if prev.Amount != next.Amount {
		fields = append(fields, "amount")
	}
	if prev.Note != next.Note {
		fields = append(fields, "note")
	}
	if prev.Sync != next.Sync {
		fields = append(fields, "sync")
	}
	return fields
}

// Save upserts a single item and fires the matching hook after commit.
func (s *Store) Save(ctx context.Context, item *models.FeedItem) error {
	return s.SaveBatch(ctx, []*models.FeedItem{item})
}

// SaveBatch upserts items in one transaction. Hooks fire after commit, one
// event per item, in batch order.
func (s *Store) SaveBatch(ctx context.Context, items []*models.FeedItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	changes := make([]Change, 0, len(items))
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, item := range items {
			change, e := putItem(tx, item)
			if e != nil {
				return e
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save feed items: %w", err)
	}

	s.fire(changes)
	return nil
}

// SetSync flips the sync flag of one item. Missing items return
// common.ErrorNotFound. A no-op change still commits but fires no hook.
func (s *Store) SetSync(ctx context.Context, id string, val bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var changed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		feed := tx.Bucket([]byte(bucketFeed))
		data := feed.Get([]byte(id))
		if data == nil {
			return common.ErrorNotFound
		}
		var item models.FeedItem
		if e := json.Unmarshal(data, &item); e != nil {
			return e
		}
		if item.Sync == val {
			return nil
		}
		item.Sync = val
		changed = true
		updated, e := json.Marshal(&item)
		if e != nil {
			return e
		}
		return feed.Put([]byte(id), updated)
	})
	if err != nil {
		return err
	}

	if changed {
		s.fire([]Change{{Kind: ChangeUpdate, ID: id, Fields: []string{"sync"}}})
	}
	return nil
}

// Unsynced returns all items whose sync flag is false.
func (s *Store) Unsynced(ctx context.Context) ([]*models.FeedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*models.FeedItem
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketFeed)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item models.FeedItem
			if e := json.Unmarshal(v, &item); e != nil {
				s.log.Warn(ctx, "skipping unreadable local record", "key", string(k), "error", e)
				continue
			}
			if !item.Sync {
				result = append(result, &item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MaxDate returns the highest date across all items (the sync watermark),
// or 0 for an empty store.
func (s *Store) MaxDate(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var max int64
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketDateIdx)).Cursor()
		if k, _ := c.Last(); k != nil {
			max = int64(binary.BigEndian.Uint64(k[:8]))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return max, nil
}

// Clear removes all items but keeps the store usable.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketFeed, bucketDateIdx} {
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Destroy closes the store and deletes its file. Used by account deletion.
func (s *Store) Destroy() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return os.Remove(s.path)
}

// Path returns the location of the store file.
func (s *Store) Path() string {
	return s.path
}
