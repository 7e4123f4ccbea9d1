package engine

import "fmt"

// AuthError represents a rejected login. It is surfaced inline and only
// retried on the next explicit login attempt.
type AuthError struct {
	ServerURL string // Server the login was attempted against
	Err       error  // Underlying error, if any
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected by %s", e.ServerURL)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// MasterKeyError represents a successful login where the server refused to
// export the master key.
type MasterKeyError struct {
	StatusCode int   // HTTP status returned by the key endpoint, if applicable
	Err        error // Underlying error, if any
}

func (e *MasterKeyError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("master key unavailable (HTTP %d)", e.StatusCode)
	}

	return "master key unavailable"
}

func (e *MasterKeyError) Unwrap() error {
	return e.Err
}

// CatalogLoadError represents a failed folder or archive listing. Retryable
// via an explicit refresh.
type CatalogLoadError struct {
	Collection string // "folders" or "archives"
	Err        error  // Underlying error, if any
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("failed to load %s listing", e.Collection)
}

func (e *CatalogLoadError) Unwrap() error {
	return e.Err
}

// DownloadStartError represents a start call the engine rejected. The request
// is dropped, never requeued; the user must re-initiate.
type DownloadStartError struct {
	ItemID string // Item or folder id the start was attempted for
	Reason string // Engine-supplied reason, if any
	Err    error  // Underlying error, if any
}

func (e *DownloadStartError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("engine rejected download start for %s: %s", e.ItemID, e.Reason)
	}

	return fmt.Sprintf("engine rejected download start for %s", e.ItemID)
}

func (e *DownloadStartError) Unwrap() error {
	return e.Err
}

// FileOperationError represents a failed delete or open of a local path.
// Logged; never aborts a batch operation.
type FileOperationError struct {
	Operation string // "delete" or "open"
	Path      string // The path the operation failed on
	Err       error  // Underlying error, if any
}

func (e *FileOperationError) Error() string {
	return fmt.Sprintf("file %s failed for %s", e.Operation, e.Path)
}

func (e *FileOperationError) Unwrap() error {
	return e.Err
}
