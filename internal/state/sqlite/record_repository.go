package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/offloadhq/offload-client/internal/record"
)

const snapshotSlot = "downloads"

// RecordRepository persists the full download record map as one JSON snapshot.
// The in-memory store stays authoritative for the running session; writes here
// are best-effort.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(dbConn *sql.DB) *RecordRepository {
	return &RecordRepository{db: dbConn}
}

func (r *RecordRepository) SaveSnapshot(records map[string]record.DownloadRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO record_snapshots (slot, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, snapshotSlot, string(payload), time.Now().Format(time.RFC3339))

	return err
}

// LoadSnapshot returns the persisted record map. A missing or unparseable
// snapshot yields an empty map: restoring state must never block startup.
func (r *RecordRepository) LoadSnapshot() (map[string]record.DownloadRecord, error) {
	var payload string

	err := r.db.QueryRow(`SELECT payload FROM record_snapshots WHERE slot = ?`, snapshotSlot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]record.DownloadRecord{}, nil
	}

	if err != nil {
		return nil, err
	}

	records := map[string]record.DownloadRecord{}
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return map[string]record.DownloadRecord{}, nil
	}

	return records, nil
}
