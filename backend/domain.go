package backend

import (
	"strings"
	"time"
)

// ItemID identifies one node in the remote tree. The service assigns them;
// RootID is a local convention the API treats as the forest root.
type ItemID int64

const RootID ItemID = 0

type ItemKind int

const (
	KindUnknown ItemKind = iota
	KindFile
	KindFolder
	KindDevice
	KindRecycleBin
)

func (k ItemKind) String() string {
	switch k {
	case KindFile:
		return "File"
	case KindFolder:
		return "Folder"
	case KindDevice:
		return "Device"
	case KindRecycleBin:
		return "Recycle Bin"
	default:
		return "Unknown"
	}
}

// IsContainer reports whether children can be listed under this kind.
func (k ItemKind) IsContainer() bool {
	return k == KindFolder || k == KindDevice || k == KindRecycleBin
}

// RemoteItem is one node of the remote tree, validated at the API-client
// boundary so nothing downstream handles untyped metadata.
type RemoteItem struct {
	ID       ItemID
	ParentID ItemID
	Name     string
	Kind     ItemKind
	Size     uint64
	Modified time.Time
	Checksum string
	// URL is the download location the listing carried, if any. Short-lived;
	// refreshed through Client.DownloadLink before a transfer.
	URL string
	// Data holds inlined content for tiny items the service embeds directly
	// in metadata instead of object storage.
	Data string
}

func (it RemoteItem) IsContainer() bool { return it.Kind.IsContainer() }

// CanonicalPath is the separator-agnostic form of a tree position: a list of
// name segments from the root. The zero value is the root itself.
type CanonicalPath []string

func (p CanonicalPath) String() string {
	return "/" + strings.Join(p, "/")
}

func (p CanonicalPath) IsRoot() bool { return len(p) == 0 }

// Child returns p extended by one segment, without sharing backing storage
// with p.
func (p CanonicalPath) Child(name string) CanonicalPath {
	out := make(CanonicalPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// Parent returns the containing path; the root is its own parent.
func (p CanonicalPath) Parent() CanonicalPath {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// SplitPath normalizes a user-supplied path string into segments using sep.
// It keeps "." and ".." segments for the resolver to interpret and reports
// whether the input was anchored at the root.
func SplitPath(input, sep string) (segments []string, absolute bool) {
	if sep == "" {
		sep = "/"
	}
	if strings.HasPrefix(input, sep) {
		absolute = true
	}
	for _, seg := range strings.Split(input, sep) {
		if seg == "" {
			continue
		}
		segments = append(segments, seg)
	}
	return segments, absolute
}
