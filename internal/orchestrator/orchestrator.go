package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/offloadhq/offload-client/internal/catalog"
	"github.com/offloadhq/offload-client/internal/deletion"
	"github.com/offloadhq/offload-client/internal/engine"
	"github.com/offloadhq/offload-client/internal/logctx"
	"github.com/offloadhq/offload-client/internal/notify"
	"github.com/offloadhq/offload-client/internal/queue"
	"github.com/offloadhq/offload-client/internal/record"
	"github.com/offloadhq/offload-client/internal/state"
	"github.com/offloadhq/offload-client/internal/telemetry"
)

// Orchestrator serializes every mutation of the download state behind one
// mutex, so the record store, queue controller, and deduplicator never need
// locking of their own. Every entry point takes the lock, reacts, and then
// persists and signals as a side effect.
type Orchestrator struct {
	mu sync.Mutex

	store    *record.Store
	queue    *queue.Controller
	dedup    *notify.Deduplicator
	deletion *deletion.Engine
	eng      engine.Engine
	settings state.SettingsRepository
	records  state.RecordRepository
	tel      *telemetry.Telemetry

	snapshot *catalog.Snapshot
	changes  chan struct{}
}

func New(
	store *record.Store,
	qc *queue.Controller,
	dedup *notify.Deduplicator,
	del *deletion.Engine,
	eng engine.Engine,
	settings state.SettingsRepository,
	records state.RecordRepository,
	tel *telemetry.Telemetry,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		queue:    qc,
		dedup:    dedup,
		deletion: del,
		eng:      eng,
		settings: settings,
		records:  records,
		tel:      tel,
		snapshot: catalog.NewSnapshot(nil, nil),
		changes:  make(chan struct{}, 1),
	}
}

// Changes delivers a coalesced signal after every state mutation. Consumers
// re-read the projections; the signal carries no payload.
func (o *Orchestrator) Changes() <-chan struct{} {
	return o.changes
}

func (o *Orchestrator) signal() {
	select {
	case o.changes <- struct{}{}:
	default:
	}
}

// persist writes the record snapshot best-effort. The in-memory store stays
// authoritative; a storage failure is logged and the session continues.
func (o *Orchestrator) persist(ctx context.Context) {
	if err := o.records.SaveSnapshot(o.store.Map()); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to persist record snapshot", "err", err)
	}
}

// Restore loads the persisted record snapshot into the store. Called once at
// startup, before any event is consumed.
func (o *Orchestrator) Restore(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	records, err := o.records.LoadSnapshot()
	if err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to load record snapshot", "err", err)

		return
	}

	o.store.Replace(records)
	logctx.LoggerFromContext(ctx).Info("restored download records", "record_count", len(records))
	o.signal()
}

// HandleProgress merges one engine event into the store and runs the reaction
// chain: persist, scan for completions, refill the queue. Events for unknown
// ids are dropped without side effects.
func (o *Orchestrator) HandleProgress(ctx context.Context, ev engine.ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev, _ := o.store.Get(ev.ID)

	if !o.store.Merge(ev.ID, ev.Partial) {
		logctx.LoggerFromContext(ctx).Debug("dropped event for unknown download", "download_id", ev.ID)

		return
	}

	cur, _ := o.store.Get(ev.ID)
	if cur.Status == record.StatusCompleted && prev.Status != record.StatusCompleted {
		o.tel.RecordDownloadCompleted(ctx)
	}

	o.persist(ctx)

	for range o.dedup.Scan(ctx, o.store.Snapshot()) {
		o.tel.RecordNotification(ctx)
	}

	o.queue.Fill(ctx)
	o.observeQueue(ctx)
	o.signal()
}

// Enqueue admits or queues a download request. The returned bool reports
// immediate admission; an error means the engine rejected the start and the
// request was dropped.
func (o *Orchestrator) Enqueue(ctx context.Context, req queue.Request) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	admitted, err := o.queue.Enqueue(ctx, req)
	if err != nil {
		return false, err
	}

	if admitted {
		o.tel.RecordDownloadStarted(ctx)
	}

	o.persist(ctx)
	o.observeQueue(ctx)
	o.signal()

	return admitted, nil
}

// SetMaxConcurrent clamps and applies a new concurrency cap, persists it, and
// admits queued entries the raised cap now allows. Returns the applied value.
func (o *Orchestrator) SetMaxConcurrent(ctx context.Context, n int) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	applied := o.queue.SetMaxConcurrent(n)

	if err := o.settings.Set(state.KeyMaxConcurrent, strconv.Itoa(applied)); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to persist concurrency cap", "err", err)
	}

	o.queue.Fill(ctx)
	o.persist(ctx)
	o.observeQueue(ctx)
	o.signal()

	return applied
}

// Pause forwards a pause intent. The record only flips when the engine
// confirms through a progress event.
func (o *Orchestrator) Pause(ctx context.Context, id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.queue.Pause(ctx, id)
}

// RequestDelete resolves selected ids to deletion targets. When a remembered
// choice applies it is executed immediately and needsConfirm is false;
// otherwise the caller must confirm and call ApplyDeletion. An empty or
// fully-unknown selection is a no-op.
func (o *Orchestrator) RequestDelete(ctx context.Context, ids []string) (targets []deletion.Target, needsConfirm bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	targets = o.deletion.Resolve(ids)
	if len(targets) == 0 {
		return nil, false
	}

	if !o.deletion.NeedsConfirmation() {
		o.applyDeletionLocked(ctx, targets, o.deletion.Policy().Choice)

		return targets, false
	}

	return targets, true
}

// ApplyDeletion executes a confirmed delete/remove over resolved targets,
// optionally remembering the choice for future selections.
func (o *Orchestrator) ApplyDeletion(ctx context.Context, targets []deletion.Target, choice deletion.Choice, remember bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if remember {
		if err := o.deletion.Remember(choice); err != nil {
			logctx.LoggerFromContext(ctx).Error("failed to persist deletion choice", "err", err)
		}
	}

	o.applyDeletionLocked(ctx, targets, choice)
}

func (o *Orchestrator) applyDeletionLocked(ctx context.Context, targets []deletion.Target, choice deletion.Choice) {
	o.deletion.Apply(ctx, targets, choice)
	o.persist(ctx)
	o.queue.Fill(ctx)
	o.observeQueue(ctx)
	o.signal()
}

// ForgetDeletionChoice clears the remembered preference.
func (o *Orchestrator) ForgetDeletionChoice(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.deletion.Forget(); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to clear deletion choice", "err", err)
	}
}

// Login authenticates against the remote server, persists the credentials and
// the exported master key on success.
func (o *Orchestrator) Login(ctx context.Context, serverURL, username, password string) error {
	masterKey, err := o.eng.Login(ctx, serverURL, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for key, value := range map[string]string{
		state.KeyServerURL: serverURL,
		state.KeyUsername:  username,
		state.KeyPassword:  password,
		state.KeyMasterKey: masterKey,
	} {
		if err := o.settings.Set(key, value); err != nil {
			logctx.LoggerFromContext(ctx).Error("failed to persist credential", "key", key, "err", err)
		}
	}

	return nil
}

// RefreshCatalog fetches the flat folder and archive lists and swaps in a new
// snapshot. Drop payloads and enqueue requests resolve against whatever
// snapshot is current when they land.
func (o *Orchestrator) RefreshCatalog(ctx context.Context) error {
	folders, err := o.eng.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}

	archives, err := o.eng.ListArchives(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}

	o.mu.Lock()
	o.snapshot = catalog.NewSnapshot(folders, archives)
	o.mu.Unlock()

	o.signal()

	return nil
}

// CatalogSnapshot returns the snapshot current at call time.
func (o *Orchestrator) CatalogSnapshot() *catalog.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.snapshot
}

// Records returns the sorted record projection.
func (o *Orchestrator) Records() []record.DownloadRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.store.Snapshot()
}

// Pending returns the queued requests in arrival order.
func (o *Orchestrator) Pending() []queue.Request {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.queue.Pending()
}

// MaxConcurrent returns the current concurrency cap.
func (o *Orchestrator) MaxConcurrent() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.queue.Max()
}

// OpenPath asks the engine to reveal a downloaded file.
func (o *Orchestrator) OpenPath(ctx context.Context, id string) {
	o.mu.Lock()
	rec, ok := o.store.Get(id)
	o.mu.Unlock()

	if !ok || rec.Path == "" {
		return
	}

	if err := o.eng.OpenPath(ctx, rec.Path); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to open path", "download_id", id, "path", rec.Path, "err", err)
	}
}

func (o *Orchestrator) observeQueue(ctx context.Context) {
	o.tel.ObserveQueue(ctx, o.store.ActiveCount(), len(o.queue.Pending()))
}

// EventSource produces the engine's progress event stream. Reconnectable:
// each call opens a fresh stream.
type EventSource interface {
	Events(ctx context.Context) (<-chan engine.ProgressEvent, error)
}

const reconnectBackoff = 2 * time.Second

// RunEventPump consumes the engine event stream until the context is
// cancelled, reconnecting with a fixed backoff when the stream drops and
// restarting after a panic.
func (o *Orchestrator) RunEventPump(ctx context.Context, source EventSource) {
	logger := logctx.LoggerFromContext(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("event pump panic",
					"operation", "run_event_pump",
					"panic", r,
					"stack", string(debug.Stack()))

				if ctx.Err() == nil {
					logger.Info("restarting event pump after panic", "operation", "run_event_pump")
					time.Sleep(time.Second)
					o.RunEventPump(ctx, source)
				}
			}
		}()

		for ctx.Err() == nil {
			events, err := source.Events(ctx)
			if err != nil {
				logger.Error("failed to open event stream", "err", err)

				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectBackoff):
				}

				continue
			}

			logger.Info("event stream connected")

			for ev := range events {
				o.HandleProgress(ctx, ev)
			}

			if ctx.Err() == nil {
				logger.Warn("event stream dropped, reconnecting")

				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectBackoff):
				}
			}
		}

		logger.Info("event pump shutdown", "reason", "context_cancelled")
	}()
}
