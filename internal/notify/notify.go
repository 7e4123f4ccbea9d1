package notify

import (
	"context"
	"fmt"

	"github.com/offloadhq/offload-client/internal/logctx"
	"github.com/offloadhq/offload-client/internal/record"
)

// NotificationError wraps a failed permission check or emission. Logged at
// warn and otherwise swallowed: notification is advisory, never load-bearing.
type NotificationError struct {
	DownloadID string // Download the notification was for
	Err        error  // Underlying error, if any
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to notify for download %s", e.DownloadID)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Notifier emits one user-visible notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Permission gates notification delivery. Query first; request at most once
// per process when not granted.
type Permission interface {
	Granted(ctx context.Context) bool
	Request(ctx context.Context) bool
}

// Deduplicator scans the record store after every mutation and emits exactly
// one completion notification per download id for the process lifetime. The
// ledger is not persisted: a restart may re-notify a restored completed
// record.
type Deduplicator struct {
	notifier   Notifier
	permission Permission

	seen      map[string]struct{}
	requested bool
	granted   bool
}

func NewDeduplicator(notifier Notifier, permission Permission) *Deduplicator {
	return &Deduplicator{
		notifier:   notifier,
		permission: permission,
		seen:       make(map[string]struct{}),
	}
}

// Scan walks a store snapshot and notifies for newly completed records. An id
// is added to the ledger before any emission attempt so a re-entrant scan can
// never double-notify. Returns the number of notifications attempted, so the
// caller can feed its metrics.
func (d *Deduplicator) Scan(ctx context.Context, records []record.DownloadRecord) int {
	logger := logctx.LoggerFromContext(ctx)

	var attempted int

	for _, rec := range records {
		if rec.Status != record.StatusCompleted {
			continue
		}

		if _, ok := d.seen[rec.ID]; ok {
			continue
		}

		d.seen[rec.ID] = struct{}{}

		if !d.ensurePermission(ctx) {
			logger.Warn("notification skipped",
				"download_id", rec.ID,
				"err", &NotificationError{DownloadID: rec.ID, Err: errPermissionDenied})

			continue
		}

		attempted++

		if err := d.notifier.Notify(ctx, "Download complete", rec.Name); err != nil {
			logger.Warn("notification failed",
				"download_id", rec.ID,
				"err", &NotificationError{DownloadID: rec.ID, Err: err})
		}
	}

	return attempted
}

// Notified reports whether an id is in the ledger.
func (d *Deduplicator) Notified(id string) bool {
	_, ok := d.seen[id]

	return ok
}

var errPermissionDenied = fmt.Errorf("notification permission denied")

func (d *Deduplicator) ensurePermission(ctx context.Context) bool {
	if d.permission == nil {
		return true
	}

	if d.granted {
		return true
	}

	if d.permission.Granted(ctx) {
		d.granted = true

		return true
	}

	if !d.requested {
		d.requested = true
		d.granted = d.permission.Request(ctx)
	}

	return d.granted
}

// LogNotifier is the fallback sink when no webhook is configured: the
// notification lands in the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, title, body string) error {
	logctx.LoggerFromContext(ctx).Info("notification", "title", title, "body", body)

	return nil
}
