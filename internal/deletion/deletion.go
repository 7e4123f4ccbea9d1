package deletion

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/offloadhq/offload-client/internal/engine"
	"github.com/offloadhq/offload-client/internal/logctx"
	"github.com/offloadhq/offload-client/internal/record"
	"github.com/offloadhq/offload-client/internal/state"
)

// Choice is what happens to the file on disk when records are deleted.
type Choice string

const (
	// ChoiceDelete removes the downloaded file and the record.
	ChoiceDelete Choice = "delete"
	// ChoiceRemove drops the record only; the file stays.
	ChoiceRemove Choice = "remove"
)

func (c Choice) Valid() bool {
	return c == ChoiceDelete || c == ChoiceRemove
}

// Policy is the persisted remembered-choice preference. While remembered, the
// confirmation step is skipped for every multi-delete.
type Policy struct {
	Remembered bool
	Choice     Choice
}

// Target pairs a selected record id with its resolved filesystem path.
type Target struct {
	ID   string
	Path string
}

// Engine applies delete/remove actions to selected records. Filesystem
// deletion goes through the external engine; bookkeeping removal is
// unconditional once an action is chosen.
type Engine struct {
	store       *record.Store
	fs          engine.FileOps
	settings    state.SettingsRepository
	downloadDir string
	policy      Policy
}

func NewEngine(store *record.Store, fs engine.FileOps, settings state.SettingsRepository, downloadDir string) *Engine {
	return &Engine{
		store:       store,
		fs:          fs,
		settings:    settings,
		downloadDir: downloadDir,
		policy:      loadPolicy(settings),
	}
}

func loadPolicy(settings state.SettingsRepository) Policy {
	var p Policy

	if raw, ok, err := settings.Get(state.KeyDeletionRemembered); err == nil && ok {
		p.Remembered, _ = strconv.ParseBool(raw)
	}

	if raw, ok, err := settings.Get(state.KeyDeletionChoice); err == nil && ok {
		if c := Choice(raw); c.Valid() {
			p.Choice = c
		}
	}

	if !p.Choice.Valid() {
		p.Remembered = false
	}

	return p
}

// Policy returns the current remembered-choice preference.
func (e *Engine) Policy() Policy {
	return e.policy
}

// NeedsConfirmation reports whether a multi-delete must surface the
// confirmation step.
func (e *Engine) NeedsConfirmation() bool {
	return !e.policy.Remembered || !e.policy.Choice.Valid()
}

// Resolve maps selected ids to their filesystem paths: the record's stored
// path, falling back to the download directory plus name. Unknown ids are
// skipped.
func (e *Engine) Resolve(ids []string) []Target {
	targets := make([]Target, 0, len(ids))

	for _, id := range ids {
		rec, ok := e.store.Get(id)
		if !ok {
			continue
		}

		path := rec.Path
		if path == "" {
			path = filepath.Join(e.downloadDir, rec.Name)
		}

		targets = append(targets, Target{ID: id, Path: path})
	}

	return targets
}

// Apply executes the chosen action. For ChoiceDelete, one engine delete call
// is issued per target; a per-path failure is logged and the batch continues.
// All selected records are removed from the store regardless of per-path
// outcome.
func (e *Engine) Apply(ctx context.Context, targets []Target, choice Choice) {
	logger := logctx.LoggerFromContext(ctx)

	ids := make([]string, 0, len(targets))

	for _, target := range targets {
		ids = append(ids, target.ID)

		if choice != ChoiceDelete {
			continue
		}

		if err := e.fs.DeletePath(ctx, target.Path); err != nil {
			logger.Error("failed to delete file", "download_id", target.ID, "path", target.Path, "err", err)
		}
	}

	e.store.Remove(ids)
}

// Remember persists the choice so future multi-deletes skip confirmation.
func (e *Engine) Remember(choice Choice) error {
	if !choice.Valid() {
		return nil
	}

	e.policy = Policy{Remembered: true, Choice: choice}

	if err := e.settings.Set(state.KeyDeletionRemembered, "true"); err != nil {
		return err
	}

	return e.settings.Set(state.KeyDeletionChoice, string(choice))
}

// Forget clears the remembered choice; the next multi-delete confirms again.
func (e *Engine) Forget() error {
	e.policy = Policy{}

	return e.settings.Set(state.KeyDeletionRemembered, "false")
}
