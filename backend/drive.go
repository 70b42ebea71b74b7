package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/bernd-wechner/Degoo/internal"
)

// Drive bundles the client, cache, resolver and working directory into one
// explicitly passed object owned by the caller. Nothing here is global
// state; two Drives over the same client do not share a cache.
type Drive struct {
	Client   Client
	Cache    *TreeCache
	Resolver *Resolver

	// CWD is the current working item. The path is authoritative; the ID is
	// a hint that is re-established by resolving the path.
	CWD   CanonicalPath
	CWDID ItemID

	session SessionConfig
	opts    TransferOptions
}

// TransferOptions tunes Upload and Download without changing their
// contracts: both skips are per file and a skipped file reports the
// existing item.
type TransferOptions struct {
	// IfChanged skips uploading a file whose remote copy already matches
	// it by size and checksum.
	IfChanged bool
	// IfMissing skips downloading a file that already exists locally.
	IfMissing bool
}

// NewDrive wires a Drive around client. sep is the path separator user
// input is split on; session carries transfer tuning and is completed with
// the client and cache here.
func NewDrive(client Client, sep string, session SessionConfig) *Drive {
	cache := NewTreeCache(client)
	session.Client = client
	session.Cache = cache
	if session.Classifier == nil {
		session.Classifier = SniffClassifier{}
	}
	return &Drive{
		Client:   client,
		Cache:    cache,
		Resolver: NewResolver(cache, sep),
		CWD:      CanonicalPath{},
		CWDID:    RootID,
		session:  session,
	}
}

// SetTransferOptions installs per-file skip rules for subsequent Upload
// and Download calls.
func (d *Drive) SetTransferOptions(opts TransferOptions) { d.opts = opts }

// SetProgress installs a sink that transfer sessions report byte counts
// to.
func (d *Drive) SetProgress(sink ProgressSink) { d.session.Progress = sink }

// Item resolves path against the working directory. An empty path is the
// working directory itself.
func (d *Drive) Item(ctx context.Context, path string) (RemoteItem, error) {
	return d.Resolver.Resolve(ctx, d.CWD, path)
}

// List returns the children of the folder at path.
func (d *Drive) List(ctx context.Context, path string) ([]RemoteItem, error) {
	item, err := d.Item(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.Cache.GetChildren(ctx, item.ID)
}

// ListAt is List for an already canonical path, bypassing separator
// handling.
func (d *Drive) ListAt(ctx context.Context, path CanonicalPath) ([]RemoteItem, error) {
	item, err := d.Resolver.ResolveCanonical(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.Cache.GetChildren(ctx, item.ID)
}

// ChangeDir moves the working directory to path. The target must be
// something children can be listed under.
func (d *Drive) ChangeDir(ctx context.Context, path string) (RemoteItem, error) {
	item, err := d.Item(ctx, path)
	if err != nil {
		return RemoteItem{}, err
	}
	if item.ID != RootID && !item.IsContainer() {
		return RemoteItem{}, &NotFoundError{Segment: path, In: d.CWD.String()}
	}
	d.CWD = d.Resolver.Canonicalize(d.CWD, path)
	d.CWDID = item.ID
	return item, nil
}

// MkdirAll creates the folder at path along with any missing parents,
// mkdir -p style. Folders that already exist are not an error; an existing
// non-folder in the way is a ConflictError. Each created folder is inserted
// into the cache optimistically, so a following listing needs no refetch.
func (d *Drive) MkdirAll(ctx context.Context, path string) (RemoteItem, error) {
	return d.mkdirCanonical(ctx, d.Resolver.Canonicalize(d.CWD, path))
}

func (d *Drive) mkdirCanonical(ctx context.Context, target CanonicalPath) (RemoteItem, error) {
	current, _ := d.Cache.Get(RootID)
	for _, seg := range target {
		child, found, err := d.findChild(ctx, current.ID, seg)
		if err != nil {
			return RemoteItem{}, err
		}
		if found {
			if !child.IsContainer() {
				return RemoteItem{}, &ConflictError{Name: seg, Parent: current.ID}
			}
			current = child
			continue
		}

		created, err := d.Client.CreateFolder(ctx, current.ID, seg)
		if err != nil {
			return RemoteItem{}, err
		}
		d.Cache.InsertSynthetic(current.ID, created)
		internal.Debug("created folder", internal.Fields{
			internal.FieldName:   seg,
			internal.FieldItemID: int64(created.ID),
		})
		current = created
	}
	return current, nil
}

// Remove deletes the item at path and evicts its subtree from the cache.
func (d *Drive) Remove(ctx context.Context, path string) (RemoteItem, error) {
	item, err := d.Item(ctx, path)
	if err != nil {
		return RemoteItem{}, err
	}
	if item.ID == RootID || item.Kind == KindDevice {
		return RemoteItem{}, &ConflictError{Name: item.Name, Parent: item.ParentID}
	}
	if err := d.Client.DeleteItem(ctx, item.ID); err != nil {
		return RemoteItem{}, err
	}
	d.Cache.RemoveSynthetic(item.ID)
	return item, nil
}

// Move renames and/or moves the item at src to dst. Moving onto an existing
// file is a conflict; moving into an existing folder keeps the source name.
func (d *Drive) Move(ctx context.Context, src, dst string) (RemoteItem, error) {
	item, err := d.Item(ctx, src)
	if err != nil {
		return RemoteItem{}, err
	}

	targetPath := d.Resolver.Canonicalize(d.CWD, dst)
	targetName := item.Name
	targetParent := targetPath

	if existing, err := d.Resolver.ResolveCanonical(ctx, targetPath); err == nil {
		if !existing.IsContainer() {
			return RemoteItem{}, &ConflictError{Name: existing.Name, Parent: existing.ParentID}
		}
		// dst is an existing folder: move into it, same name.
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return RemoteItem{}, err
		}
		targetName = targetPath[len(targetPath)-1]
		targetParent = targetPath.Parent()
	}

	parent, err := d.Resolver.ResolveCanonical(ctx, targetParent)
	if err != nil {
		return RemoteItem{}, err
	}
	if !parent.IsContainer() && parent.ID != RootID {
		return RemoteItem{}, &ConflictError{Name: parent.Name, Parent: parent.ParentID}
	}

	if parent.ID == item.ParentID {
		if targetName == item.Name {
			return item, nil
		}
		if err := d.Client.RenameItem(ctx, item.ID, targetName); err != nil {
			return RemoteItem{}, err
		}
	} else {
		if targetName != item.Name {
			if err := d.Client.RenameItem(ctx, item.ID, targetName); err != nil {
				return RemoteItem{}, err
			}
		}
		if err := d.Client.MoveItem(ctx, item.ID, parent.ID); err != nil {
			return RemoteItem{}, err
		}
	}

	// Cached paths under both folders are wrong now.
	d.Cache.Invalidate(item.ParentID)
	d.Cache.Invalidate(parent.ID)
	d.Cache.RemoveSynthetic(item.ID)

	item.Name = targetName
	item.ParentID = parent.ID
	return item, nil
}

// Upload sends the local file or directory at localPath into the remote
// folder at remotePath.
func (d *Drive) Upload(ctx context.Context, localPath, remotePath string) (RemoteItem, error) {
	fi, err := os.Stat(localPath)
	if err != nil {
		return RemoteItem{}, err
	}
	if fi.IsDir() {
		return d.uploadTree(ctx, localPath, remotePath)
	}

	parent, err := d.Item(ctx, remotePath)
	if err != nil {
		return RemoteItem{}, err
	}
	if !parent.IsContainer() && parent.ID != RootID {
		return RemoteItem{}, &ConflictError{Name: parent.Name, Parent: parent.ParentID}
	}
	if existing, ok, err := d.unchangedRemote(ctx, localPath, parent.ID); err != nil {
		return RemoteItem{}, err
	} else if ok {
		return existing, nil
	}
	return d.newSession().Upload(ctx, localPath, parent)
}

// unchangedRemote looks for a remote sibling already holding the local
// file's content. Only active under IfChanged.
func (d *Drive) unchangedRemote(ctx context.Context, localPath string, parent ItemID) (RemoteItem, bool, error) {
	if !d.opts.IfChanged {
		return RemoteItem{}, false, nil
	}
	existing, ok, err := d.findChild(ctx, parent, filepath.Base(localPath))
	if err != nil || !ok {
		return RemoteItem{}, false, err
	}
	if !matchesLocal(localPath, existing) {
		return RemoteItem{}, false, nil
	}
	internal.Debug("unchanged, skipping upload", internal.Fields{
		internal.FieldPath:   localPath,
		internal.FieldItemID: existing.ID,
	})
	return existing, true, nil
}

// matchesLocal reports whether item already holds the content of the local
// file: sizes equal and, when the remote carries a checksum, the local
// file's checksum equals it.
func matchesLocal(localPath string, item RemoteItem) bool {
	if item.IsContainer() {
		return false
	}
	fi, err := os.Stat(localPath)
	if err != nil || fi.IsDir() || uint64(fi.Size()) != item.Size {
		return false
	}
	if item.Checksum == "" {
		return true
	}
	sum, err := ChecksumFile(localPath)
	return err == nil && sum == item.Checksum
}

func (d *Drive) uploadTree(ctx context.Context, localDir, remotePath string) (RemoteItem, error) {
	rootPath := d.Resolver.Canonicalize(d.CWD, remotePath).Child(filepath.Base(localDir))
	root, err := d.mkdirCanonical(ctx, rootPath)
	if err != nil {
		return RemoteItem{}, err
	}

	err = filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil || rel == "." {
			return err
		}

		remote := rootPath
		for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
			remote = remote.Child(seg)
		}
		if info.IsDir() {
			_, err := d.mkdirCanonical(ctx, remote)
			return err
		}
		parent, err := d.Resolver.ResolveCanonical(ctx, remote.Parent())
		if err != nil {
			return err
		}
		if _, ok, err := d.unchangedRemote(ctx, path, parent.ID); err != nil || ok {
			return err
		}
		_, err = d.newSession().Upload(ctx, path, parent)
		return err
	})
	if err != nil {
		return RemoteItem{}, err
	}
	return root, nil
}

// Download fetches the file or folder at remotePath into localDir. A
// folder downloads recursively.
func (d *Drive) Download(ctx context.Context, remotePath, localDir string) (RemoteItem, error) {
	item, err := d.Item(ctx, remotePath)
	if err != nil {
		return RemoteItem{}, err
	}
	if localDir == "" {
		localDir = "."
	}
	if item.IsContainer() {
		return item, d.downloadTree(ctx, item, localDir)
	}
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return RemoteItem{}, err
	}
	dest := filepath.Join(localDir, item.Name)
	if d.skipExisting(dest) {
		return item, nil
	}
	return item, d.newSession().Download(ctx, item, dest)
}

// skipExisting reports whether dest should be left alone under IfMissing.
func (d *Drive) skipExisting(dest string) bool {
	if !d.opts.IfMissing {
		return false
	}
	fi, err := os.Stat(dest)
	if err != nil || fi.IsDir() {
		return false
	}
	internal.Debug("already present, skipping download", internal.Fields{
		internal.FieldPath: dest,
	})
	return true
}

func (d *Drive) downloadTree(ctx context.Context, folder RemoteItem, localDir string) error {
	dest := filepath.Join(localDir, folder.Name)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	children, err := d.Cache.GetChildren(ctx, folder.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.IsContainer() {
			if err := d.downloadTree(ctx, child, dest); err != nil {
				return err
			}
			continue
		}
		childDest := filepath.Join(dest, child.Name)
		if d.skipExisting(childDest) {
			continue
		}
		if err := d.newSession().Download(ctx, child, childDest); err != nil {
			// Keep going on per-file failures, as the original tooling did,
			// but report them.
			internal.Error("download failed", internal.Fields{
				internal.FieldName:  child.Name,
				internal.FieldError: err.Error(),
			})
		}
	}
	return nil
}

// RestoreCWD re-establishes a persisted working directory by resolving its
// path, trusting the path over the stored ID.
func (d *Drive) RestoreCWD(ctx context.Context, path string) error {
	if path == "" || path == "/" {
		d.CWD = CanonicalPath{}
		d.CWDID = RootID
		return nil
	}
	// Persisted working paths are always in canonical slash-joined form.
	segments, _ := SplitPath(path, "/")
	target := CanonicalPath(segments)
	item, err := d.Resolver.ResolveCanonical(ctx, target)
	if err != nil {
		return err
	}
	d.CWD = target
	d.CWDID = item.ID
	return nil
}

func (d *Drive) newSession() *TransferSession {
	return NewTransferSession(d.session)
}

// findChild is a single cache-backed lookup without the resolver's
// stale-retry, for callers about to create the missing child anyway.
func (d *Drive) findChild(ctx context.Context, parent ItemID, name string) (RemoteItem, bool, error) {
	kids, err := d.Cache.GetChildren(ctx, parent)
	if err != nil {
		return RemoteItem{}, false, err
	}
	return matchName(kids, parent, name)
}
