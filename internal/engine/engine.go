package engine

import (
	"context"

	"github.com/offloadhq/offload-client/internal/catalog"
	"github.com/offloadhq/offload-client/internal/record"
)

// ProgressEvent is one asynchronous update for a download, carrying a partial
// record. Events for a given id arrive in the order the engine produced them.
type ProgressEvent struct {
	ID string `json:"id"`
	record.Partial
}

// Engine is the boundary to the external transfer engine. The engine owns the
// actual network transfer; this client only requests work and observes
// progress.
type Engine interface {
	// Login authenticates against the remote server and returns the exported
	// master key. Fails with *AuthError on bad credentials and *MasterKeyError
	// when the server disallows key export.
	Login(ctx context.Context, serverURL, username, password string) (string, error)

	// ListFolders and ListArchives return the flat catalog collections.
	ListFolders(ctx context.Context) ([]catalog.Folder, error)
	ListArchives(ctx context.Context) ([]catalog.Archive, error)

	Starter
	FileOps

	// Log forwards a diagnostic line to the engine's log sink. Fire-and-forget.
	Log(ctx context.Context, level, message string)
}

// Starter is the subset of the engine the queue controller needs.
type Starter interface {
	// StartItemDownload asks the engine to begin transferring one catalog item
	// (or one bundle member when subFileIndex is non-nil) into destinationDir.
	// The returned id identifies the download in all subsequent events.
	StartItemDownload(ctx context.Context, itemID, destinationDir string, subFileIndex *int) (string, error)

	// StartFolderDownload begins transferring a whole folder as one archive.
	StartFolderDownload(ctx context.Context, folderID, folderName, destinationDir string) (string, error)

	// PauseDownload requests a pause. Best-effort: whether it took effect is
	// only learned from a later progress event.
	PauseDownload(ctx context.Context, id string) error
}

// FileOps is the subset of the engine the deletion policy engine needs.
type FileOps interface {
	DeletePath(ctx context.Context, path string) error
	OpenPath(ctx context.Context, path string) error
}
