package drag

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/offloadhq/offload-client/internal/catalog"
	"github.com/offloadhq/offload-client/internal/queue"
)

// Kind tags the two payload shapes carried across the gesture boundary.
type Kind string

const (
	KindItem   Kind = "item"
	KindFolder Kind = "folder"
)

// Payload is a pending transfer request encoded at drag start and resolved at
// drop time.
type Payload struct {
	Kind         Kind   `json:"kind"`
	ItemID       string `json:"itemId,omitempty"`
	SubFileIndex *int   `json:"subFileIndex,omitempty"`
	FolderID     string `json:"folderId,omitempty"`
	FolderName   string `json:"folderName,omitempty"`
}

// ItemPayload builds a payload for one catalog item or bundle member.
func ItemPayload(itemID string, subFileIndex *int) Payload {
	return Payload{Kind: KindItem, ItemID: itemID, SubFileIndex: subFileIndex}
}

// FolderPayload builds a payload for a whole-folder request. The folder name
// travels with the payload so the drop does not need a catalog lookup.
func FolderPayload(folderID, folderName string) Payload {
	return Payload{Kind: KindFolder, FolderID: folderID, FolderName: folderName}
}

// Encode serializes a payload for the platform drag channel.
func Encode(p Payload) string {
	raw, _ := json.Marshal(p)

	return base64.StdEncoding.EncodeToString(raw)
}

// Decode parses an encoded payload. Corrupt or foreign input yields an error
// the caller discards silently; it must never take down the session.
func Decode(encoded string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to decode payload: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to parse payload: %w", err)
	}

	switch p.Kind {
	case KindItem:
		if p.ItemID == "" {
			return Payload{}, fmt.Errorf("item payload without item id")
		}
	case KindFolder:
		if p.FolderID == "" {
			return Payload{}, fmt.Errorf("folder payload without folder id")
		}
	default:
		return Payload{}, fmt.Errorf("unknown payload kind %q", p.Kind)
	}

	return p, nil
}

// ArchiveSuffix is appended to a synthesized whole-folder download name.
const ArchiveSuffix = ".zip"

// Resolve turns a payload into a queue request. The catalog snapshot is the
// one current at resolution time, passed explicitly: never a snapshot
// captured when the gesture began.
func Resolve(p Payload, snap *catalog.Snapshot) (queue.Request, error) {
	switch p.Kind {
	case KindItem:
		name, ok := snap.DisplayName(p.ItemID, p.SubFileIndex)
		if !ok {
			return queue.Request{}, fmt.Errorf("item %s not in catalog", p.ItemID)
		}

		return queue.Request{ItemID: p.ItemID, SubFileIndex: p.SubFileIndex, Name: name}, nil
	case KindFolder:
		name := p.FolderName
		if name == "" {
			return queue.Request{}, fmt.Errorf("folder payload without name")
		}

		return queue.Request{FolderID: p.FolderID, FolderName: p.FolderName, Name: name + ArchiveSuffix}, nil
	default:
		return queue.Request{}, fmt.Errorf("unknown payload kind %q", p.Kind)
	}
}

// ResolveEncoded is the native-path entry: decode the platform drag channel
// value and resolve it. Both gesture paths converge here or on Resolve.
func ResolveEncoded(encoded string, snap *catalog.Snapshot) (queue.Request, error) {
	p, err := Decode(encoded)
	if err != nil {
		return queue.Request{}, err
	}

	return Resolve(p, snap)
}
