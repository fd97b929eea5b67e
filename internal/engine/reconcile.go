package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/feedvault/internal/common"
	"github.com/dmitrijs2005/feedvault/internal/models"
	"github.com/dmitrijs2005/feedvault/internal/remote"
)

// Reconcile pulls remote records newer than the local watermark into the
// local store, then re-pushes items whose earlier pushes failed. Safe to run
// repeatedly and to interrupt: every pass recomputes the watermark from the
// local store.
func (e *Engine) Reconcile(ctx context.Context) error {
	if err := e.awaitReady(ctx); err != nil {
		return err
	}
	return e.reconcile(ctx)
}

func (e *Engine) reconcile(ctx context.Context) error {
	watermark, err := e.store.MaxDate(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute watermark: %w", err)
	}

	var records []models.EncryptedFeedRecord
	err = e.feed().Find(ctx, remote.Q{"user_id": e.userID, "date": remote.Gt(watermark)}, &records)
	if err != nil {
		return fmt.Errorf("remote pull failed: %w", err)
	}

	var pulled []*models.FeedItem
	for _, rec := range records {
		if !feedMirror(&rec) {
			continue
		}
		var item models.FeedItem
		if err := e.gate.DecryptJSON(rec.Encrypted, &item); err != nil {
			// one corrupt record must not abort the batch
			e.log.Warn(ctx, "skipping undecryptable record", "record", rec.ID, "error", err)
			continue
		}
		if item.Id == "" {
			e.log.Warn(ctx, "skipping mirror without item id", "record", rec.ID)
			continue
		}
		cur, gerr := e.store.Get(ctx, item.Id)
		if gerr != nil && !errors.Is(gerr, common.ErrorNotFound) {
			e.log.Error(ctx, "local lookup failed during pull", "id", item.Id, "error", gerr)
			continue
		}
		if gerr == nil && cur.Date > item.Date {
			// local copy is more recent, local store wins
			continue
		}
		item.Sync = true
		pulled = append(pulled, &item)
	}

	if len(pulled) > 0 {
		if err := e.store.SaveBatch(ctx, pulled); err != nil {
			return fmt.Errorf("failed to store pulled items: %w", err)
		}
		e.log.Info(ctx, "pulled remote records", "count", len(pulled), "watermark", watermark)
	}

	e.retryUnsynced(ctx)
	return nil
}

// feedMirror reports whether rec is an eligible feed mirror: settings blobs
// and records without txHash never merge into the local feed.
func feedMirror(rec *models.EncryptedFeedRecord) bool {
	if rec.RecordType == models.RecordTypeSettings {
		return false
	}
	if strings.Contains(rec.ID, models.SettingsMarker) {
		return false
	}
	return rec.TxHash != ""
}

// retryUnsynced re-attempts the push path for every item with sync=false.
// Attempts for different items run concurrently; the per-item lock and a
// re-read of the stored flag keep them consistent with fresh writes.
func (e *Engine) retryUnsynced(ctx context.Context) {
	items, err := e.store.Unsynced(ctx)
	if err != nil {
		e.log.Error(ctx, "retry scan failed", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, item := range items {
		if !item.SyncEligible() {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			e.retryPush(ctx, id)
		}(item.Id)
	}
	wg.Wait()
}

func (e *Engine) retryPush(ctx context.Context, id string) {
	unlock := e.locks.lock(id)
	defer unlock()

	// the stored sync flag is the single source of truth; a concurrent
	// write may have mirrored this item already
	cur, err := e.store.Get(ctx, id)
	if err != nil || cur.Sync {
		return
	}

	if err := e.mirror(ctx, *cur); err != nil {
		// flag stays false, retried on the next pass
		e.log.Warn(ctx, "retry push failed", "id", id, "error", err)
		return
	}
	if err := e.store.SetSync(ctx, id, true); err != nil {
		e.log.Error(ctx, "failed to mark item synced", "id", id, "error", err)
	}
}
