package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offloadhq/offload-client/internal/catalog"
	"github.com/offloadhq/offload-client/internal/deletion"
	"github.com/offloadhq/offload-client/internal/engine"
	"github.com/offloadhq/offload-client/internal/notify"
	"github.com/offloadhq/offload-client/internal/queue"
	"github.com/offloadhq/offload-client/internal/record"
	"github.com/offloadhq/offload-client/internal/state"
	"github.com/offloadhq/offload-client/internal/telemetry"
)

type fakeEngine struct {
	nextID    int
	started   []string
	paused    []string
	deleted   []string
	opened    []string
	folders   []catalog.Folder
	archives  []catalog.Archive
	loginErr  error
	masterKey string
}

func (f *fakeEngine) Login(_ context.Context, _, _, _ string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}

	return f.masterKey, nil
}

func (f *fakeEngine) ListFolders(_ context.Context) ([]catalog.Folder, error) {
	return f.folders, nil
}

func (f *fakeEngine) ListArchives(_ context.Context) ([]catalog.Archive, error) {
	return f.archives, nil
}

func (f *fakeEngine) StartItemDownload(_ context.Context, itemID, _ string, _ *int) (string, error) {
	f.nextID++
	f.started = append(f.started, itemID)

	return fmt.Sprintf("dl-%d", f.nextID), nil
}

func (f *fakeEngine) StartFolderDownload(_ context.Context, folderID, _, _ string) (string, error) {
	f.nextID++
	f.started = append(f.started, folderID)

	return fmt.Sprintf("dl-%d", f.nextID), nil
}

func (f *fakeEngine) PauseDownload(_ context.Context, id string) error {
	f.paused = append(f.paused, id)

	return nil
}

func (f *fakeEngine) DeletePath(_ context.Context, path string) error {
	f.deleted = append(f.deleted, path)

	return nil
}

func (f *fakeEngine) OpenPath(_ context.Context, path string) error {
	f.opened = append(f.opened, path)

	return nil
}

func (f *fakeEngine) Log(_ context.Context, _, _ string) {}

type memorySettings struct {
	values map[string]string
}

func newMemorySettings() *memorySettings {
	return &memorySettings{values: make(map[string]string)}
}

func (m *memorySettings) Get(key string) (string, bool, error) {
	v, ok := m.values[key]

	return v, ok, nil
}

func (m *memorySettings) Set(key, value string) error {
	m.values[key] = value

	return nil
}

type memoryRecords struct {
	snapshot map[string]record.DownloadRecord
	saves    int
}

func (m *memoryRecords) SaveSnapshot(records map[string]record.DownloadRecord) error {
	m.snapshot = records
	m.saves++

	return nil
}

func (m *memoryRecords) LoadSnapshot() (map[string]record.DownloadRecord, error) {
	if m.snapshot == nil {
		return map[string]record.DownloadRecord{}, nil
	}

	return m.snapshot, nil
}

type countingNotifier struct {
	bodies []string
}

func (n *countingNotifier) Notify(_ context.Context, _, body string) error {
	n.bodies = append(n.bodies, body)

	return nil
}

type fixture struct {
	orch     *Orchestrator
	eng      *fakeEngine
	store    *record.Store
	settings *memorySettings
	records  *memoryRecords
	notifier *countingNotifier
}

func newFixture(maxConcurrent int) *fixture {
	eng := &fakeEngine{masterKey: "mk"}
	store := record.NewStore()
	settings := newMemorySettings()
	records := &memoryRecords{}
	notifier := &countingNotifier{}

	qc := queue.NewController(store, eng, "/downloads", maxConcurrent)
	dedup := notify.NewDeduplicator(notifier, nil)
	del := deletion.NewEngine(store, eng, settings, "/downloads")

	return &fixture{
		orch:     New(store, qc, dedup, del, eng, settings, records, nil),
		eng:      eng,
		store:    store,
		settings: settings,
		records:  records,
		notifier: notifier,
	}
}

func statusPtr(s record.Status) *record.Status { return &s }

func progress(id string, status record.Status) engine.ProgressEvent {
	return engine.ProgressEvent{ID: id, Partial: record.Partial{Status: statusPtr(status)}}
}

func TestHandleProgress_UnknownIDDropped(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	f.orch.HandleProgress(ctx, progress("ghost", record.StatusActive))

	assert.Zero(t, f.store.Len())
	assert.Zero(t, f.records.saves, "dropped event must not trigger persistence")
}

func TestHandleProgress_CompletionNotifiesOnceAndRefills(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	admitted, err := f.orch.Enqueue(ctx, queue.Request{ItemID: "a", Name: "first"})
	require.NoError(t, err)
	assert.True(t, admitted)

	admitted, err = f.orch.Enqueue(ctx, queue.Request{ItemID: "b", Name: "second"})
	require.NoError(t, err)
	assert.False(t, admitted, "second request must queue behind the cap")

	f.orch.HandleProgress(ctx, progress("dl-1", record.StatusCompleted))

	require.Equal(t, []string{"first"}, f.notifier.bodies)
	assert.Len(t, f.eng.started, 2, "freed slot must admit the queued request")
	assert.Empty(t, f.orch.Pending())

	// A duplicate completion event must not re-notify.
	f.orch.HandleProgress(ctx, progress("dl-1", record.StatusCompleted))
	assert.Len(t, f.notifier.bodies, 1)
}

func TestHandleProgress_CompletionCountsNotificationMetric(t *testing.T) {
	tel, err := telemetry.New(telemetry.Config{Enabled: true, ServiceName: "offload-client-test"})
	require.NoError(t, err)

	eng := &fakeEngine{masterKey: "mk"}
	store := record.NewStore()
	settings := newMemorySettings()
	notifier := &countingNotifier{}

	qc := queue.NewController(store, eng, "/downloads", 1)
	dedup := notify.NewDeduplicator(notifier, nil)
	del := deletion.NewEngine(store, eng, settings, "/downloads")
	orch := New(store, qc, dedup, del, eng, settings, &memoryRecords{}, tel)

	ctx := context.Background()

	_, err = orch.Enqueue(ctx, queue.Request{ItemID: "a", Name: "report.pdf"})
	require.NoError(t, err)

	orch.HandleProgress(ctx, progress("dl-1", record.StatusCompleted))
	require.Len(t, notifier.bodies, 1)

	// The emitted notification shows up on the scrape endpoint. Sync
	// counters only export after their first increment.
	rec := httptest.NewRecorder()
	tel.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, rec.Body.String(), "notifications_sent_total")
}

func TestSetMaxConcurrent_PersistsAndAdmits(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	_, err := f.orch.Enqueue(ctx, queue.Request{ItemID: "a", Name: "a"})
	require.NoError(t, err)
	_, err = f.orch.Enqueue(ctx, queue.Request{ItemID: "b", Name: "b"})
	require.NoError(t, err)
	_, err = f.orch.Enqueue(ctx, queue.Request{ItemID: "c", Name: "c"})
	require.NoError(t, err)

	applied := f.orch.SetMaxConcurrent(ctx, 3)

	assert.Equal(t, 3, applied)
	assert.Equal(t, "3", f.settings.values[state.KeyMaxConcurrent])
	assert.Len(t, f.eng.started, 3)
	assert.Empty(t, f.orch.Pending())
}

func TestSetMaxConcurrent_Clamps(t *testing.T) {
	f := newFixture(3)

	assert.Equal(t, queue.MaxConcurrent, f.orch.SetMaxConcurrent(context.Background(), 99))
	assert.Equal(t, queue.MinConcurrent, f.orch.SetMaxConcurrent(context.Background(), 0))
}

func TestRequestDelete_RememberedChoiceAppliesImmediately(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	_, err := f.orch.Enqueue(ctx, queue.Request{ItemID: "a", Name: "report.pdf"})
	require.NoError(t, err)

	targets, needsConfirm := f.orch.RequestDelete(ctx, []string{"dl-1"})
	require.True(t, needsConfirm, "first delete must ask for confirmation")
	require.Len(t, targets, 1)

	f.orch.ApplyDeletion(ctx, targets, deletion.ChoiceDelete, true)

	assert.Zero(t, f.store.Len())
	assert.Equal(t, []string{"/downloads/report.pdf"}, f.eng.deleted)

	// Now remembered: the next selection applies without confirmation.
	_, err = f.orch.Enqueue(ctx, queue.Request{ItemID: "b", Name: "other.bin"})
	require.NoError(t, err)

	_, needsConfirm = f.orch.RequestDelete(ctx, []string{"dl-2"})
	assert.False(t, needsConfirm)
	assert.Zero(t, f.store.Len())
}

func TestRequestDelete_EmptySelectionIsNoOp(t *testing.T) {
	f := newFixture(3)

	targets, needsConfirm := f.orch.RequestDelete(context.Background(), []string{"missing"})

	assert.Empty(t, targets)
	assert.False(t, needsConfirm)
}

func TestRestore_ReplacesStore(t *testing.T) {
	f := newFixture(3)
	f.records.snapshot = map[string]record.DownloadRecord{
		"dl-9": {ID: "dl-9", Name: "restored", Status: record.StatusPaused},
	}

	f.orch.Restore(context.Background())

	rec, ok := f.store.Get("dl-9")
	require.True(t, ok)
	assert.Equal(t, record.StatusPaused, rec.Status)
}

func TestLogin_PersistsCredentialsAndMasterKey(t *testing.T) {
	f := newFixture(3)

	require.NoError(t, f.orch.Login(context.Background(), "https://box.example", "alice", "s3cret"))

	assert.Equal(t, "https://box.example", f.settings.values[state.KeyServerURL])
	assert.Equal(t, "alice", f.settings.values[state.KeyUsername])
	assert.Equal(t, "s3cret", f.settings.values[state.KeyPassword])
	assert.Equal(t, "mk", f.settings.values[state.KeyMasterKey])
}

func TestLogin_FailureLeavesSettingsUntouched(t *testing.T) {
	f := newFixture(3)
	f.eng.loginErr = fmt.Errorf("bad credentials")

	require.Error(t, f.orch.Login(context.Background(), "https://box.example", "alice", "wrong"))
	assert.Empty(t, f.settings.values)
}

func TestRefreshCatalog_SwapsSnapshot(t *testing.T) {
	f := newFixture(3)
	f.eng.folders = []catalog.Folder{{ID: "f1", Name: "docs"}}
	f.eng.archives = []catalog.Archive{{ID: "a1", FolderID: "f1", Name: "paper"}}

	require.NoError(t, f.orch.RefreshCatalog(context.Background()))

	snap := f.orch.CatalogSnapshot()
	_, ok := snap.Archive("a1")
	assert.True(t, ok)
	assert.Len(t, snap.ChildFolders(""), 1)
}

func TestOpenPath_UnknownIDIgnored(t *testing.T) {
	f := newFixture(3)

	f.orch.OpenPath(context.Background(), "missing")

	assert.Empty(t, f.eng.opened)
}

func TestOpenPath_ForwardsRecordPath(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	_, err := f.orch.Enqueue(ctx, queue.Request{ItemID: "a", Name: "movie.mkv"})
	require.NoError(t, err)

	f.orch.OpenPath(ctx, "dl-1")

	assert.Equal(t, []string{"/downloads/movie.mkv"}, f.eng.opened)
}

func TestChanges_CoalescesSignals(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	_, err := f.orch.Enqueue(ctx, queue.Request{ItemID: "a", Name: "a"})
	require.NoError(t, err)
	_, err = f.orch.Enqueue(ctx, queue.Request{ItemID: "b", Name: "b"})
	require.NoError(t, err)

	select {
	case <-f.orch.Changes():
	default:
		t.Fatal("expected a pending change signal")
	}

	select {
	case <-f.orch.Changes():
		t.Fatal("signals must coalesce to one")
	default:
	}
}
