package catalog

import "sort"

// Folder is a node of the remote folder tree. The server hands out a flat
// list; nesting is reconstructed here from ParentID.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
}

// BundleFile is one member of a bundle archive. Members share the archive id
// and are addressed by index.
type BundleFile struct {
	Name string `json:"originalName"`
	Size int64  `json:"size"`
}

// Archive is a downloadable catalog entry, either a single file or a bundle.
type Archive struct {
	ID           string       `json:"id"`
	FolderID     string       `json:"folderId"`
	Name         string       `json:"displayName"`
	DownloadName string       `json:"downloadName"`
	Size         int64        `json:"size"`
	IsBundle     bool         `json:"isBundle"`
	Files        []BundleFile `json:"files"`
}

const fallbackName = "download.bin"

// DisplayName resolves the name a download of this archive should carry.
// A nil index means the whole archive; otherwise the named bundle member.
func (a Archive) DisplayName(subFileIndex *int) string {
	if subFileIndex != nil {
		if i := *subFileIndex; i >= 0 && i < len(a.Files) && a.Files[i].Name != "" {
			return a.Files[i].Name
		}
	}

	if a.DownloadName != "" {
		return a.DownloadName
	}

	if a.Name != "" {
		return a.Name
	}

	return fallbackName
}

// Snapshot is an immutable view of the catalog at one refresh. Drop payloads
// are resolved against the snapshot current at resolution time, never against
// one captured when a gesture began.
type Snapshot struct {
	folders    []Folder
	archives   []Archive
	archiveIDs map[string]int
	children   map[string][]int
	byFolder   map[string][]int
}

// NewSnapshot indexes the flat folder and archive lists from the engine.
func NewSnapshot(folders []Folder, archives []Archive) *Snapshot {
	s := &Snapshot{
		folders:    folders,
		archives:   archives,
		archiveIDs: make(map[string]int, len(archives)),
		children:   make(map[string][]int, len(folders)),
		byFolder:   make(map[string][]int, len(folders)),
	}

	for i, f := range folders {
		s.children[f.ParentID] = append(s.children[f.ParentID], i)
	}

	for i, a := range archives {
		s.archiveIDs[a.ID] = i
		s.byFolder[a.FolderID] = append(s.byFolder[a.FolderID], i)
	}

	return s
}

// Archive looks up an archive by id.
func (s *Snapshot) Archive(id string) (Archive, bool) {
	i, ok := s.archiveIDs[id]
	if !ok {
		return Archive{}, false
	}

	return s.archives[i], true
}

// Folder looks up a folder by id.
func (s *Snapshot) Folder(id string) (Folder, bool) {
	for _, f := range s.folders {
		if f.ID == id {
			return f, true
		}
	}

	return Folder{}, false
}

// ChildFolders returns the folders directly under parentID, sorted by name.
// The empty string addresses the root.
func (s *Snapshot) ChildFolders(parentID string) []Folder {
	idxs := s.children[parentID]

	out := make([]Folder, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.folders[i])
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// ArchivesIn returns the archives directly under folderID, sorted by name.
func (s *Snapshot) ArchivesIn(folderID string) []Archive {
	idxs := s.byFolder[folderID]

	out := make([]Archive, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.archives[i])
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// DisplayName resolves an item id (and optional bundle member index) to the
// name a download should carry. The second return is false when the item is
// not in this snapshot.
func (s *Snapshot) DisplayName(itemID string, subFileIndex *int) (string, bool) {
	a, ok := s.Archive(itemID)
	if !ok {
		return "", false
	}

	return a.DisplayName(subFileIndex), true
}
