package degoo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bernd-wechner/Degoo/backend"
)

// itemProperties is the field set requested for every item-shaped reply.
const itemProperties = `ID ParentID Name Category Size CreationTime LastModificationTime LastUploadTime URL OptimizedURL Data IsInRecycleBin DeviceID MetadataID __typename`

// rawItem mirrors the wire shape of one tree item. The API encodes most
// numerics as strings, and at least one field changes type across
// categories, so everything is validated and coerced here before anything
// else sees it.
type rawItem struct {
	ID                   string          `json:"ID"`
	ParentID             string          `json:"ParentID"`
	Name                 string          `json:"Name"`
	Category             int             `json:"Category"`
	Size                 json.RawMessage `json:"Size"`
	LastUploadTime       string          `json:"LastUploadTime"`
	LastModificationTime string          `json:"LastModificationTime"`
	URL                  string          `json:"URL"`
	OptimizedURL         string          `json:"OptimizedURL"`
	Data                 string          `json:"Data"`
	IsInRecycleBin       bool            `json:"IsInRecycleBin"`
	DeviceID             int64           `json:"DeviceID"`
}

// Category values as the backend assigns them. Everything above Folder is
// a file flavor (image, video, music, document and so on) except the
// recycle bin.
const (
	categoryFile       = 0
	categoryDevice     = 1
	categoryFolder     = 2
	categoryRecycleBin = 10
)

func (r *rawItem) toRemoteItem() (backend.RemoteItem, error) {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return backend.RemoteItem{}, fmt.Errorf("item ID %q: %w", r.ID, err)
	}

	// Devices hang off the root but report their own ID as parent.
	var parent int64
	if r.ParentID != "" {
		parent, err = strconv.ParseInt(r.ParentID, 10, 64)
		if err != nil {
			return backend.RemoteItem{}, fmt.Errorf("item %d parent ID %q: %w", id, r.ParentID, err)
		}
	}
	if parent == id {
		parent = int64(backend.RootID)
	}

	size, err := coerceSize(r.Size)
	if err != nil {
		return backend.RemoteItem{}, fmt.Errorf("item %d size: %w", id, err)
	}

	return backend.RemoteItem{
		ID:       backend.ItemID(id),
		ParentID: backend.ItemID(parent),
		Name:     r.Name,
		Kind:     kindOf(r.Category),
		Size:     size,
		Modified: coerceTime(r.LastModificationTime, r.LastUploadTime),
		URL:      r.URL,
		Data:     r.Data,
	}, nil
}

func kindOf(category int) backend.ItemKind {
	switch category {
	case categoryDevice:
		return backend.KindDevice
	case categoryFolder:
		return backend.KindFolder
	case categoryRecycleBin:
		return backend.KindRecycleBin
	default:
		return backend.KindFile
	}
}

// coerceSize accepts the number-or-string-or-absent encodings the API has
// been observed to use for Size.
func coerceSize(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var asNumber uint64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return 0, fmt.Errorf("unrecognized encoding %s", raw)
	}
	if asString == "" {
		return 0, nil
	}
	return strconv.ParseUint(asString, 10, 64)
}

// coerceTime picks the first parseable of the millisecond-epoch strings.
func coerceTime(candidates ...string) time.Time {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if ms, err := strconv.ParseInt(candidate, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	}
	return time.Time{}
}
