package record

import "sort"

// Status is the lifecycle state of a download as reported by the engine.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusError     Status = "error"
	StatusCompleted Status = "completed"
)

// IsTerminal reports whether the status will never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CountsAgainstCap reports whether a record in this status occupies a
// concurrency slot. Paused downloads give their slot back.
func (s Status) CountsAgainstCap() bool {
	return !s.IsTerminal() && s != StatusPaused
}

// DownloadRecord tracks one accepted download request. The ID is assigned by
// the engine at start time and is never reused.
type DownloadRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Downloaded int64  `json:"downloaded"`
	Total      int64  `json:"total"`
	Speed      int64  `json:"speed"`
	Status     Status `json:"status"`
	Path       string `json:"path"`
}

// Partial is a field-wise overlay carried by a progress event. Nil fields are
// absent and leave the existing value untouched on merge.
type Partial struct {
	Name       *string `json:"name,omitempty"`
	Downloaded *int64  `json:"downloaded,omitempty"`
	Total      *int64  `json:"total,omitempty"`
	Speed      *int64  `json:"speed,omitempty"`
	Status     *Status `json:"status,omitempty"`
	Path       *string `json:"path,omitempty"`
}

// Store is the authoritative map of download id to lifecycle state.
//
// The store does no locking of its own: the orchestrator serializes every
// mutation, matching the single-threaded reaction model of the rest of the
// core.
type Store struct {
	records map[string]DownloadRecord
}

func NewStore() *Store {
	return &Store{records: make(map[string]DownloadRecord)}
}

// Add inserts a record created by the queue controller at admission time.
func (s *Store) Add(rec DownloadRecord) {
	s.records[rec.ID] = rec
}

// Merge overlays the fields present in partial onto the record with the given
// id. Events for unknown ids are dropped: a record is only ever created by the
// queue controller, and a late event must not resurrect a removed record.
// Returns whether a record was updated.
func (s *Store) Merge(id string, partial Partial) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}

	if partial.Name != nil {
		rec.Name = *partial.Name
	}

	if partial.Downloaded != nil {
		rec.Downloaded = *partial.Downloaded
	}

	if partial.Total != nil {
		rec.Total = *partial.Total
	}

	if partial.Speed != nil {
		rec.Speed = *partial.Speed
	}

	if partial.Status != nil {
		rec.Status = *partial.Status
	}

	if partial.Path != nil {
		rec.Path = *partial.Path
	}

	s.records[id] = rec

	return true
}

// Remove deletes records by id. Only the deletion policy engine calls this.
func (s *Store) Remove(ids []string) {
	for _, id := range ids {
		delete(s.records, id)
	}
}

// Get returns the record for id, if present.
func (s *Store) Get(id string) (DownloadRecord, bool) {
	rec, ok := s.records[id]

	return rec, ok
}

// Len returns the number of tracked records.
func (s *Store) Len() int {
	return len(s.records)
}

// ActiveCount counts records that occupy a concurrency slot.
func (s *Store) ActiveCount() int {
	var n int

	for _, rec := range s.records {
		if rec.Status.CountsAgainstCap() {
			n++
		}
	}

	return n
}

// Snapshot returns the records as a stable, name-then-id sorted slice. Views
// are derived from this projection on demand rather than cached.
func (s *Store) Snapshot() []DownloadRecord {
	out := make([]DownloadRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}

		return out[i].ID < out[j].ID
	})

	return out
}

// Map returns a copy of the underlying map, used for persistence snapshots.
func (s *Store) Map() map[string]DownloadRecord {
	out := make(map[string]DownloadRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}

	return out
}

// Replace swaps in a restored record map, e.g. from the persisted snapshot.
func (s *Store) Replace(records map[string]DownloadRecord) {
	s.records = make(map[string]DownloadRecord, len(records))
	for id, rec := range records {
		s.records[id] = rec
	}
}
