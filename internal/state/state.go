package state

import "github.com/offloadhq/offload-client/internal/record"

// Keys for the persisted settings slots. All values round-trip as strings.
const (
	KeyServerURL          = "server_url"
	KeyUsername           = "username"
	KeyPassword           = "password"
	KeyMasterKey          = "master_key"
	KeyDownloadDir        = "download_dir"
	KeyMaxConcurrent      = "max_concurrent"
	KeyDeletionRemembered = "deletion_remembered"
	KeyDeletionChoice     = "deletion_choice"

	KeyNotificationsEnabled = "notifications_enabled"
)

// SettingsRepository stores small mutable settings as key/value pairs.
type SettingsRepository interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// RecordRepository snapshots the full download record map. Loads are lenient:
// a missing or unreadable snapshot comes back as an empty map, never an error
// the caller has to treat as fatal.
type RecordRepository interface {
	SaveSnapshot(records map[string]record.DownloadRecord) error
	LoadSnapshot() (map[string]record.DownloadRecord, error)
}
