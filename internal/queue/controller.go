package queue

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/offloadhq/offload-client/internal/engine"
	"github.com/offloadhq/offload-client/internal/logctx"
	"github.com/offloadhq/offload-client/internal/record"
)

// Concurrency cap bounds. SetMaxConcurrent clamps into this range.
const (
	MinConcurrent = 1
	MaxConcurrent = 8
)

// Request names one catalog item (with an optional bundle member index) or
// one whole folder, plus the display name resolved at request time.
type Request struct {
	ItemID       string `json:"itemId,omitempty"`
	SubFileIndex *int   `json:"subFileIndex,omitempty"`
	FolderID     string `json:"folderId,omitempty"`
	FolderName   string `json:"folderName,omitempty"`
	Name         string `json:"name"`
}

// IsFolder reports whether the request targets a whole folder.
func (r Request) IsFolder() bool {
	return r.FolderID != ""
}

// Controller decides whether a download request starts immediately or waits
// in a FIFO queue. Capacity exhaustion is never an error: queuing is the
// defined behavior. The controller enforces the cap itself; the engine just
// runs whatever it is asked to.
type Controller struct {
	store         *record.Store
	starter       engine.Starter
	downloadDir   string
	maxConcurrent int
	pending       []Request
}

func NewController(store *record.Store, starter engine.Starter, downloadDir string, maxConcurrent int) *Controller {
	return &Controller{
		store:         store,
		starter:       starter,
		downloadDir:   downloadDir,
		maxConcurrent: clamp(maxConcurrent),
	}
}

func clamp(n int) int {
	if n < MinConcurrent {
		return MinConcurrent
	}

	if n > MaxConcurrent {
		return MaxConcurrent
	}

	return n
}

// Enqueue admits the request immediately when a slot is free, otherwise
// appends it to the queue. The same item may be requested twice; entries are
// never deduplicated. An engine rejection drops the request entirely: the
// caller is informed and must re-initiate.
func (c *Controller) Enqueue(ctx context.Context, req Request) (bool, error) {
	if c.store.ActiveCount() < c.maxConcurrent {
		if err := c.admit(ctx, req); err != nil {
			return false, err
		}

		return true, nil
	}

	c.pending = append(c.pending, req)

	return false, nil
}

// Fill admits queued entries in arrival order while capacity allows.
// Idempotent and re-entrant-safe: with no state change it is a no-op. A start
// rejection during fill is logged and the entry dropped, matching the
// immediate-admission contract.
func (c *Controller) Fill(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	for len(c.pending) > 0 && c.store.ActiveCount() < c.maxConcurrent {
		head := c.pending[0]
		c.pending = c.pending[1:]

		if err := c.admit(ctx, head); err != nil {
			logger.Error("failed to admit queued download", "name", head.Name, "err", err)
		}
	}
}

func (c *Controller) admit(ctx context.Context, req Request) error {
	var (
		id  string
		err error
	)

	if req.IsFolder() {
		id, err = c.starter.StartFolderDownload(ctx, req.FolderID, req.FolderName, c.downloadDir)
	} else {
		id, err = c.starter.StartItemDownload(ctx, req.ItemID, c.downloadDir, req.SubFileIndex)
	}

	if err != nil {
		return fmt.Errorf("failed to start download: %w", err)
	}

	c.store.Add(record.DownloadRecord{
		ID:     id,
		Name:   req.Name,
		Status: record.StatusQueued,
		Path:   filepath.Join(c.downloadDir, SanitizeFilename(req.Name)),
	})

	return nil
}

// SetMaxConcurrent changes the cap for future admission decisions. Active
// records are never paused or cancelled by a cap change. Returns the clamped
// value; the caller persists it and re-runs Fill.
func (c *Controller) SetMaxConcurrent(n int) int {
	c.maxConcurrent = clamp(n)

	return c.maxConcurrent
}

// Max returns the current concurrency cap.
func (c *Controller) Max() int {
	return c.maxConcurrent
}

// Pending returns the queued requests in arrival order.
func (c *Controller) Pending() []Request {
	out := make([]Request, len(c.pending))
	copy(out, c.pending)

	return out
}

// Pause forwards a pause intent to the engine. The record is not flipped
// here: only a later progress event confirms the pause took effect.
func (c *Controller) Pause(ctx context.Context, id string) {
	if err := c.starter.PauseDownload(ctx, id); err != nil {
		logctx.LoggerFromContext(ctx).Warn("pause request failed", "download_id", id, "err", err)
	}
}
