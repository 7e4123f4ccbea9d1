package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/offloadhq/offload-client/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	calls []string
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, _, body string) error {
	f.calls = append(f.calls, body)

	return f.err
}

type fakePermission struct {
	granted      bool
	grantOnAsk   bool
	queryCalls   int
	requestCalls int
}

func (f *fakePermission) Granted(context.Context) bool {
	f.queryCalls++

	return f.granted
}

func (f *fakePermission) Request(context.Context) bool {
	f.requestCalls++

	return f.grantOnAsk
}

func completed(id, name string) record.DownloadRecord {
	return record.DownloadRecord{ID: id, Name: name, Status: record.StatusCompleted}
}

func TestScan_NotifiesOncePerID(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDeduplicator(n, nil)
	ctx := context.Background()

	records := []record.DownloadRecord{completed("d7", "report.pdf")}

	// Two completed events for the same id arrive; two scans run.
	assert.Equal(t, 1, d.Scan(ctx, records))
	assert.Equal(t, 0, d.Scan(ctx, records))

	assert.Equal(t, []string{"report.pdf"}, n.calls)
	assert.True(t, d.Notified("d7"))
}

func TestScan_IgnoresNonCompleted(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDeduplicator(n, nil)

	d.Scan(context.Background(), []record.DownloadRecord{
		{ID: "a", Status: record.StatusActive},
		{ID: "b", Status: record.StatusPaused},
		{ID: "c", Status: record.StatusError},
		{ID: "d", Status: record.StatusQueued},
	})

	assert.Empty(t, n.calls)
}

func TestScan_EmissionFailureStillMarksLedger(t *testing.T) {
	n := &fakeNotifier{err: errors.New("notification daemon unreachable")}
	d := NewDeduplicator(n, nil)
	ctx := context.Background()

	d.Scan(ctx, []record.DownloadRecord{completed("d1", "a.bin")})
	d.Scan(ctx, []record.DownloadRecord{completed("d1", "a.bin")})

	// One attempt only; the failure is swallowed.
	assert.Len(t, n.calls, 1)
	assert.True(t, d.Notified("d1"))
}

func TestScan_PermissionRequestedOnce(t *testing.T) {
	n := &fakeNotifier{}
	perm := &fakePermission{granted: false, grantOnAsk: false}
	d := NewDeduplicator(n, perm)
	ctx := context.Background()

	assert.Equal(t, 0, d.Scan(ctx, []record.DownloadRecord{completed("d1", "a"), completed("d2", "b")}))
	assert.Equal(t, 0, d.Scan(ctx, []record.DownloadRecord{completed("d3", "c")}))

	assert.Equal(t, 1, perm.requestCalls, "permission is requested at most once")
	assert.Empty(t, n.calls)
}

func TestScan_PermissionGrantedOnRequest(t *testing.T) {
	n := &fakeNotifier{}
	perm := &fakePermission{granted: false, grantOnAsk: true}
	d := NewDeduplicator(n, perm)

	d.Scan(context.Background(), []record.DownloadRecord{completed("d1", "a.bin")})

	assert.Equal(t, []string{"a.bin"}, n.calls)
}

func TestScan_MultipleNewCompletions(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDeduplicator(n, &fakePermission{granted: true})

	attempted := d.Scan(context.Background(), []record.DownloadRecord{
		completed("d1", "one"),
		completed("d2", "two"),
		{ID: "d3", Status: record.StatusActive},
	})

	assert.Equal(t, 2, attempted)
	assert.ElementsMatch(t, []string{"one", "two"}, n.calls)
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, jsonDecode(r, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &WebhookNotifier{WebhookURL: srv.URL}

	require.NoError(t, n.Notify(context.Background(), "Download complete", "report.pdf"))
	assert.Equal(t, "Download complete: report.pdf", got["content"])
}

func TestWebhookNotifier_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := &WebhookNotifier{WebhookURL: srv.URL}

	assert.Error(t, n.Notify(context.Background(), "t", "b"))
}

func TestWebhookNotifier_MissingURL(t *testing.T) {
	n := &WebhookNotifier{}

	assert.Error(t, n.Notify(context.Background(), "t", "b"))
}

func jsonDecode(r *http.Request, out any) error {
	defer r.Body.Close()

	return json.NewDecoder(r.Body).Decode(out)
}
