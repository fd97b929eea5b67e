// Package engine implements the synchronization core: durable local-first
// writes, encrypted remote mirroring with retry bookkeeping, pull
// reconciliation, settings and profile management, and change-listener
// fan-out. The local store is authoritative for reads; the remote store
// holds an encrypted, eventually consistent mirror.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/feedvault/internal/common"
	"github.com/dmitrijs2005/feedvault/internal/cryptox"
	"github.com/dmitrijs2005/feedvault/internal/localstore"
	"github.com/dmitrijs2005/feedvault/internal/logging"
	"github.com/dmitrijs2005/feedvault/internal/models"
	"github.com/dmitrijs2005/feedvault/internal/remote"
)

// Remote collection names. Feed mirrors and the settings blob share one
// collection; records are told apart by the record_type discriminant (and,
// for records written by older clients, by id shape).
const (
	FeedCollection    = "encrypted_feed"
	ProfileCollection = "user_profiles"
)

// Deps are the injected collaborators of an Engine.
type Deps struct {
	Remote  remote.Client
	Logger  logging.Logger
	DataDir string
}

// Option customizes an Engine at construction time.
type Option func(*Engine)

// WithPushHook installs a hook invoked after every background push settles,
// with the item id and the push outcome. Tests use it to await pushes
// deterministically.
func WithPushHook(h func(id string, err error)) Option {
	return func(e *Engine) { e.pushHook = h }
}

// Engine is the per-user synchronization engine. One instance owns its local
// store file and remote client handle exclusively.
type Engine struct {
	remote  remote.Client
	log     logging.Logger
	dataDir string

	gate   *cryptox.Gate
	store  *localstore.Store
	userID string

	ready    *readyGate
	started  atomic.Bool
	initOnce sync.Once

	listMu    sync.Mutex
	listeners []Listener

	locks    keyedLocks
	pushHook func(id string, err error)
}

// New constructs an Engine. Call Init before using it.
func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		remote:  deps.Remote,
		log:     deps.Logger,
		dataDir: deps.DataDir,
		ready:   newReadyGate(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Default returns the process-wide engine, constructing it lazily on first
// call; later calls ignore the arguments and return the same instance.
// Tests should use New and inject their own dependencies instead.
func Default(deps Deps, opts ...Option) *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		defaultEngine = New(deps, opts...)
	}
	return defaultEngine
}

func (e *Engine) feed() remote.Collection {
	return e.remote.Collection(FeedCollection)
}

func (e *Engine) profiles() remote.Collection {
	return e.remote.Collection(ProfileCollection)
}

// Init runs the initialization sequence at most once per instance: open the
// local store scoped to the key's identity, install mutation hooks,
// authenticate against the remote store, and run one reconciliation pass.
// The readiness gate settles accordingly; repeated and concurrent calls
// await the same gate, so a rejection stays observable.
func (e *Engine) Init(ctx context.Context, gate *cryptox.Gate) error {
	e.started.Store(true)
	e.initOnce.Do(func() { e.doInit(ctx, gate) })
	return e.ready.Await(ctx)
}

func (e *Engine) doInit(ctx context.Context, gate *cryptox.Gate) {
	e.gate = gate

	store, err := localstore.Open(e.dataDir, gate.Fingerprint(), e.log)
	if err != nil {
		e.ready.reject(fmt.Errorf("failed to open local store: %w", err))
		return
	}
	store.OnCreating(e.notify)
	store.OnUpdating(e.notify)
	e.store = store

	userID, err := e.remote.Authenticate(ctx)
	if err != nil {
		_ = store.Close()
		e.store = nil
		e.ready.reject(fmt.Errorf("authentication failed: %w", err))
		return
	}
	e.userID = userID

	if err := e.reconcile(ctx); err != nil {
		_ = store.Close()
		e.store = nil
		e.ready.reject(fmt.Errorf("initial reconciliation failed: %w", err))
		return
	}

	e.log.Info(ctx, "engine ready", "user", userID, "store", store.Path())
	e.ready.resolve()
}

// Ready exposes the readiness gate's settled signal. Await the channel, then
// call a public operation (or Init again) to observe a rejection cause.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready.Done()
}

func (e *Engine) awaitReady(ctx context.Context) error {
	if !e.started.Load() {
		return common.ErrorNotReady
	}
	return e.ready.Await(ctx)
}

// Read returns the locally stored item, or nil when there is no match or
// reads cannot be served. Local-only; never reaches the remote store and
// never fails the caller.
func (e *Engine) Read(ctx context.Context, id string) *models.FeedItem {
	if err := e.awaitReady(ctx); err != nil {
		e.log.Warn(ctx, "read before engine ready", "error", err)
		return nil
	}
	item, err := e.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			e.log.Error(ctx, "local read failed", "id", id, "error", err)
		}
		return nil
	}
	return item
}

// ReadByPaymentID returns the local item with the given payment id, or nil.
func (e *Engine) ReadByPaymentID(ctx context.Context, paymentID string) *models.FeedItem {
	if err := e.awaitReady(ctx); err != nil {
		e.log.Warn(ctx, "read before engine ready", "error", err)
		return nil
	}
	item, err := e.store.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			e.log.Error(ctx, "local read failed", "paymentId", paymentID, "error", err)
		}
		return nil
	}
	return item
}

// GetFeedPage returns a page of visible items ordered by date descending,
// after excluding deleted/cancelled items, applying offset then limit. Any
// failure degrades to an empty page.
func (e *Engine) GetFeedPage(ctx context.Context, numResults, offset int) []models.FeedItem {
	if err := e.awaitReady(ctx); err != nil {
		e.log.Warn(ctx, "feed page before engine ready", "error", err)
		return []models.FeedItem{}
	}
	items, err := e.store.Query().
		Reverse().
		Filter(func(it *models.FeedItem) bool { return !it.Hidden() }).
		Offset(offset).
		Limit(numResults).
		ToArray(ctx)
	if err != nil {
		e.log.Error(ctx, "feed page query failed", "error", err)
		return []models.FeedItem{}
	}
	return items
}

// DeleteAccount deletes the local store scope and all of the user's
// encrypted feed records, concurrently. Both deletions are attempted
// regardless of the other's outcome; failures are combined.
func (e *Engine) DeleteAccount(ctx context.Context) error {
	if err := e.awaitReady(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	var localErr, remoteErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		localErr = e.store.Destroy()
	}()
	go func() {
		defer wg.Done()
		remoteErr = e.feed().DeleteMany(ctx, remote.Q{"user_id": e.userID})
	}()
	wg.Wait()

	if localErr != nil {
		localErr = fmt.Errorf("local delete failed: %w", localErr)
	}
	if remoteErr != nil {
		remoteErr = fmt.Errorf("remote delete failed: %w", remoteErr)
	}
	return errors.Join(localErr, remoteErr)
}

// Store exposes the underlying local store for supporting tooling such as
// snapshots. Nil until Init resolves.
func (e *Engine) Store() *localstore.Store {
	return e.store
}

// UserID returns the authenticated user id. Empty until Init resolves.
func (e *Engine) UserID() string {
	return e.userID
}

// Close releases the local store. The remote client is owned by the caller
// that dialed it.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}
