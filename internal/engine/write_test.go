package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedvault/internal/models"
)

func TestPush_DelayedOlderPushDoesNotClobberNewerMirror(t *testing.T) {
	fr := newFakeRemote()
	eng, ch := newTestEngine(t, fr)
	ctx := context.Background()

	older := feedItem("a", 100)
	newer := feedItem("a", 200)
	newer.Note = "latest"

	require.NoError(t, eng.Write(ctx, newer))
	require.NoError(t, awaitPush(t, ch, "a"))
	pushed := fr.col(FeedCollection).updates()

	// the delayed push body of an earlier write for the same id, arriving
	// after the newer write's push has already settled
	require.NoError(t, eng.pushItem(ctx, older))

	assert.Equal(t, pushed, fr.col(FeedCollection).updates(),
		"a stale snapshot must not reach the remote store")

	doc := fr.col(FeedCollection).byID(models.FeedRecordID("tx-a", "user-1"))
	require.NotNil(t, doc)
	var mirrored models.FeedItem
	require.NoError(t, sharedGate(t).DecryptJSON(doc["encrypted"].(string), &mirrored))
	assert.Equal(t, int64(200), mirrored.Date, "mirror must correspond to the most recent local write")
	assert.Equal(t, "latest", mirrored.Note)

	got := eng.Read(ctx, "a")
	require.NotNil(t, got)
	assert.Equal(t, int64(200), got.Date)
	assert.True(t, got.Sync)
}

func TestPush_MirrorsStoredStateNotSnapshot(t *testing.T) {
	fr := newFakeRemote()
	eng, ch := newTestEngine(t, fr)
	ctx := context.Background()

	item := feedItem("a", 100)
	require.NoError(t, eng.Write(ctx, item))
	require.NoError(t, awaitPush(t, ch, "a"))

	// the local item changed at the same date; a re-push must pick up the
	// stored state, not the snapshot it was handed
	updated := feedItem("a", 100)
	updated.Note = "amended"
	require.NoError(t, eng.store.Save(ctx, &updated))

	stale := feedItem("a", 100)
	require.NoError(t, eng.pushItem(ctx, stale))

	doc := fr.col(FeedCollection).byID(models.FeedRecordID("tx-a", "user-1"))
	require.NotNil(t, doc)
	var mirrored models.FeedItem
	require.NoError(t, sharedGate(t).DecryptJSON(doc["encrypted"].(string), &mirrored))
	assert.Equal(t, "amended", mirrored.Note)
}

func TestKeyedLocks_EntriesEvictedOnRelease(t *testing.T) {
	var locks keyedLocks

	unlock := locks.lock("a")
	unlock()

	locks.mu.Lock()
	assert.Empty(t, locks.m, "released uncontended entries must be evicted")
	locks.mu.Unlock()
}

func TestKeyedLocks_MutualExclusionAndEviction(t *testing.T) {
	var locks keyedLocks

	const n = 8
	var wg sync.WaitGroup
	var held bool
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("a")
			defer unlock()
			assert.False(t, held, "two holders of the same id at once")
			held = true
			time.Sleep(time.Millisecond)
			held = false
		}()
	}
	wg.Wait()

	locks.mu.Lock()
	assert.Empty(t, locks.m)
	locks.mu.Unlock()
}

func TestKeyedLocks_IndependentIDs(t *testing.T) {
	var locks keyedLocks

	unlockA := locks.lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock for a different id must not block")
	}
}
