package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/feedvault/internal/common"
	"github.com/dmitrijs2005/feedvault/internal/models"
	"github.com/dmitrijs2005/feedvault/internal/remote"
)

// keyedLocks serializes push attempts per item id so two pushes for the same
// item cannot interleave their remote upsert and sync-flag update. Pushes
// for different items proceed independently. Entries are refcounted and
// evicted once the last holder releases, so the map stays bounded by the
// number of in-flight pushes.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) lock(id string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*itemLock)
	}
	l, ok := k.m[id]
	if !ok {
		l = &itemLock{}
		k.m[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, id)
		}
		k.mu.Unlock()
	}
}

// Write persists the item locally and returns; that local write is the
// durability point the caller can rely on. The encrypted remote mirror is
// pushed in the background, and a push failure is recorded via the item's
// sync flag for the next reconciliation pass, never surfaced here.
func (e *Engine) Write(ctx context.Context, item models.FeedItem) error {
	if item.Id == "" {
		return fmt.Errorf("%w: feed item id is required", common.ErrorInvalidArgument)
	}
	if err := e.awaitReady(ctx); err != nil {
		return err
	}

	item.Sync = false
	if err := e.store.Save(ctx, &item); err != nil {
		return fmt.Errorf("local save failed: %w", err)
	}

	go e.push(item)
	return nil
}

// push is the background half of Write. It must not use the caller's
// context: the caller has already returned.
func (e *Engine) push(item models.FeedItem) {
	ctx := context.Background()
	err := e.pushItem(ctx, item)
	if err != nil {
		e.log.Error(ctx, "background push failed, queued for retry",
			"id", item.Id, "error", err)
	}
	if e.pushHook != nil {
		e.pushHook(item.Id, err)
	}
}

// pushItem encrypts and upserts the remote mirror for one written item, then
// updates the local sync flag, all under the item's lock. The stored item is
// re-read under the lock and that state is mirrored, never the caller's
// snapshot: a delayed push must not overwrite the mirror of a newer write.
func (e *Engine) pushItem(ctx context.Context, item models.FeedItem) error {
	if !item.SyncEligible() {
		e.log.Debug(ctx, "item has no remote mirror", "id", item.Id)
		return nil
	}

	unlock := e.locks.lock(item.Id)
	defer unlock()

	cur, err := e.store.Get(ctx, item.Id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if cur.Date > item.Date {
		// a newer write owns the item; its own push mirrors the current state
		return nil
	}
	if !cur.SyncEligible() {
		return nil
	}

	err = e.mirror(ctx, *cur)
	if err == nil {
		return e.store.SetSync(ctx, item.Id, true)
	}

	// Record the failure for the next reconciliation pass, unless a newer
	// write has taken over the item since the re-read.
	latest, gerr := e.store.Get(ctx, item.Id)
	if gerr == nil && latest.Date <= cur.Date {
		if serr := e.store.SetSync(ctx, item.Id, false); serr != nil {
			e.log.Error(ctx, "failed to record push failure", "id", item.Id, "error", serr)
		}
	}
	return err
}

// mirror upserts the encrypted remote copy of item, keyed <txHash>_<userID>
// so re-pushes overwrite rather than duplicate.
func (e *Engine) mirror(ctx context.Context, item models.FeedItem) error {
	encrypted, err := e.gate.EncryptJSON(&item)
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}

	id := models.FeedRecordID(item.TxHash, e.userID)
	return e.feed().UpdateOne(ctx, remote.Q{"_id": id}, remote.Set(map[string]any{
		"user_id":     e.userID,
		"txHash":      item.TxHash,
		"date":        item.Date,
		"record_type": models.RecordTypeFeed,
		"encrypted":   encrypted,
	}), true)
}
