package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string    { return &s }
func intPtr(n int64) *int64      { return &n }
func statusPtr(s Status) *Status { return &s }

func TestMerge_UnknownIDIsDropped(t *testing.T) {
	s := NewStore()

	updated := s.Merge("ghost", Partial{Status: statusPtr(StatusActive)})

	assert.False(t, updated)
	assert.Equal(t, 0, s.Len())
}

func TestMerge_DoesNotResurrectRemovedRecord(t *testing.T) {
	s := NewStore()
	s.Add(DownloadRecord{ID: "d1", Name: "report.pdf", Status: StatusActive})
	s.Remove([]string{"d1"})

	updated := s.Merge("d1", Partial{Status: statusPtr(StatusCompleted)})

	assert.False(t, updated)
	_, ok := s.Get("d1")
	assert.False(t, ok)
}

func TestMerge_AbsentFieldsArePreserved(t *testing.T) {
	s := NewStore()
	s.Add(DownloadRecord{
		ID:         "d1",
		Name:       "report.pdf",
		Downloaded: 100,
		Total:      1000,
		Speed:      50,
		Status:     StatusActive,
		Path:       "/downloads/report.pdf",
	})

	require.True(t, s.Merge("d1", Partial{Downloaded: intPtr(400)}))

	rec, ok := s.Get("d1")
	require.True(t, ok)
	assert.Equal(t, int64(400), rec.Downloaded)
	assert.Equal(t, "report.pdf", rec.Name)
	assert.Equal(t, int64(1000), rec.Total)
	assert.Equal(t, int64(50), rec.Speed)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, "/downloads/report.pdf", rec.Path)
}

func TestMerge_LastWriteWins(t *testing.T) {
	s := NewStore()
	s.Add(DownloadRecord{ID: "d1", Status: StatusQueued})

	require.True(t, s.Merge("d1", Partial{Status: statusPtr(StatusActive)}))
	require.True(t, s.Merge("d1", Partial{Status: statusPtr(StatusPaused), Name: strPtr("renamed.bin")}))

	rec, _ := s.Get("d1")
	assert.Equal(t, StatusPaused, rec.Status)
	assert.Equal(t, "renamed.bin", rec.Name)
}

func TestActiveCount_ExcludesTerminalAndPaused(t *testing.T) {
	s := NewStore()
	s.Add(DownloadRecord{ID: "a", Status: StatusQueued})
	s.Add(DownloadRecord{ID: "b", Status: StatusActive})
	s.Add(DownloadRecord{ID: "c", Status: StatusPaused})
	s.Add(DownloadRecord{ID: "d", Status: StatusError})
	s.Add(DownloadRecord{ID: "e", Status: StatusCompleted})

	assert.Equal(t, 2, s.ActiveCount())
}

func TestSnapshot_SortedAndDetached(t *testing.T) {
	s := NewStore()
	s.Add(DownloadRecord{ID: "2", Name: "beta"})
	s.Add(DownloadRecord{ID: "1", Name: "alpha"})
	s.Add(DownloadRecord{ID: "3", Name: "alpha"})

	snap := s.Snapshot()

	require.Len(t, snap, 3)
	assert.Equal(t, "1", snap[0].ID)
	assert.Equal(t, "3", snap[1].ID)
	assert.Equal(t, "beta", snap[2].Name)

	// Mutating the snapshot must not touch the store.
	snap[0].Name = "mutated"
	rec, _ := s.Get("1")
	assert.Equal(t, "alpha", rec.Name)
}

func TestReplace_RestoresSnapshot(t *testing.T) {
	s := NewStore()
	s.Add(DownloadRecord{ID: "old"})

	s.Replace(map[string]DownloadRecord{
		"n1": {ID: "n1", Status: StatusCompleted},
		"n2": {ID: "n2", Status: StatusActive},
	})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("old")
	assert.False(t, ok)

	rec, ok := s.Get("n1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, rec.Status)
}

func TestStatus_Classification(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		counts   bool
	}{
		{StatusQueued, false, true},
		{StatusActive, false, true},
		{StatusPaused, false, false},
		{StatusError, true, false},
		{StatusCompleted, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.counts, tt.status.CountsAgainstCap())
		})
	}
}
