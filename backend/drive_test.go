package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testDrive(fake *fakeClient) *Drive {
	return NewDrive(fake, "/", SessionConfig{
		Policy:         RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond},
		ChunkSize:      1024,
		ChunkThreshold: 1024,
	})
}

// mkdir into a listed parent costs exactly one folder creation and no
// extra listing; the new folder is resolvable from the cache alone.
func TestMkdirUsesSyntheticInsert(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)

	drive := testDrive(fake)
	ctx := context.Background()
	if _, err := drive.List(ctx, "/laptop"); err != nil {
		t.Fatalf("prime: %v", err)
	}
	listsBefore := fake.totalListCalls()

	created, err := drive.MkdirAll(ctx, "/laptop/newdir")
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	item, err := drive.Item(ctx, "/laptop/newdir")
	if err != nil {
		t.Fatalf("resolve after mkdir: %v", err)
	}
	if item.ID != created.ID {
		t.Fatalf("resolved %d, created %d", item.ID, created.ID)
	}
	if fake.totalListCalls() != listsBefore {
		t.Fatalf("mkdir caused %d extra listings", fake.totalListCalls()-listsBefore)
	}
	if fake.listCount(dev) != 1 {
		t.Fatalf("parent listed %d times", fake.listCount(dev))
	}
}

func TestMkdirAllCreatesMissingParents(t *testing.T) {
	fake := newFakeClient()
	fake.addItem(RootID, "laptop", KindDevice, 0)

	drive := testDrive(fake)
	ctx := context.Background()
	if _, err := drive.MkdirAll(ctx, "/laptop/a/b/c"); err != nil {
		t.Fatalf("mkdir -p: %v", err)
	}

	item, err := drive.Item(ctx, "/laptop/a/b/c")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.Kind != KindFolder {
		t.Fatalf("created item is a %v", item.Kind)
	}

	// Creating it again is a no-op, not an error.
	again, err := drive.MkdirAll(ctx, "/laptop/a/b/c")
	if err != nil {
		t.Fatalf("re-mkdir: %v", err)
	}
	if again.ID != item.ID {
		t.Fatalf("re-mkdir produced a different folder")
	}
}

func TestMkdirThroughFileIsConflict(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	fake.addItem(dev, "notes.txt", KindFile, 3)

	drive := testDrive(fake)
	_, err := drive.MkdirAll(context.Background(), "/laptop/notes.txt/sub")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestChangeDirUpdatesAndClampsAtRoot(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	fake.addItem(dev, "docs", KindFolder, 0)

	drive := testDrive(fake)
	ctx := context.Background()

	if _, err := drive.ChangeDir(ctx, "/laptop/docs"); err != nil {
		t.Fatalf("cd: %v", err)
	}
	if drive.CWD.String() != "/laptop/docs" {
		t.Fatalf("cwd %q", drive.CWD.String())
	}

	if _, err := drive.ChangeDir(ctx, "../../../.."); err != nil {
		t.Fatalf("cd ..: %v", err)
	}
	if !drive.CWD.IsRoot() {
		t.Fatalf("cwd did not clamp at root: %q", drive.CWD.String())
	}
	if drive.CWDID != RootID {
		t.Fatalf("cwd id %d", drive.CWDID)
	}
}

func TestChangeDirIntoFileFails(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	fake.addItem(dev, "notes.txt", KindFile, 3)

	drive := testDrive(fake)
	if _, err := drive.ChangeDir(context.Background(), "/laptop/notes.txt"); err == nil {
		t.Fatalf("cd into a file should fail")
	}
	if !drive.CWD.IsRoot() {
		t.Fatalf("failed cd moved the working directory")
	}
}

func TestRemoveProtectsRootAndDevices(t *testing.T) {
	fake := newFakeClient()
	fake.addItem(RootID, "laptop", KindDevice, 0)

	drive := testDrive(fake)
	ctx := context.Background()

	var conflict *ConflictError
	if _, err := drive.Remove(ctx, "/"); !errors.As(err, &conflict) {
		t.Fatalf("removing the root: %v", err)
	}
	if _, err := drive.Remove(ctx, "/laptop"); !errors.As(err, &conflict) {
		t.Fatalf("removing a device: %v", err)
	}
	if fake.deleteCalls != 0 {
		t.Fatalf("protected removes reached the remote")
	}
}

func TestRemoveEvictsFromCache(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	fake.addItem(dev, "doomed", KindFolder, 0)

	drive := testDrive(fake)
	ctx := context.Background()
	item, err := drive.Remove(ctx, "/laptop/doomed")
	if err != nil {
		t.Fatalf("rm: %v", err)
	}
	if fake.deleteCalls != 1 {
		t.Fatalf("delete calls %d", fake.deleteCalls)
	}
	if _, ok := drive.Cache.Get(item.ID); ok {
		t.Fatalf("removed item survived in the cache")
	}
	var nf *NotFoundError
	if _, err := drive.Item(ctx, "/laptop/doomed"); !errors.As(err, &nf) {
		t.Fatalf("removed item still resolves: %v", err)
	}
}

func TestMoveIntoExistingFolderKeepsName(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	docs := fake.addItem(dev, "docs", KindFolder, 0)
	fake.addItem(dev, "notes.txt", KindFile, 3)

	drive := testDrive(fake)
	moved, err := drive.Move(context.Background(), "/laptop/notes.txt", "/laptop/docs")
	if err != nil {
		t.Fatalf("mv: %v", err)
	}
	if moved.Name != "notes.txt" {
		t.Fatalf("move into folder renamed the item to %q", moved.Name)
	}
	if moved.ParentID != docs {
		t.Fatalf("moved item under %d, want %d", moved.ParentID, docs)
	}

	item, err := drive.Item(context.Background(), "/laptop/docs/notes.txt")
	if err != nil {
		t.Fatalf("resolve after mv: %v", err)
	}
	if item.ID != moved.ID {
		t.Fatalf("resolved a different item after mv")
	}
}

func TestMoveToNewNameRenames(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	fake.addItem(dev, "old.txt", KindFile, 3)

	drive := testDrive(fake)
	moved, err := drive.Move(context.Background(), "/laptop/old.txt", "/laptop/new.txt")
	if err != nil {
		t.Fatalf("mv: %v", err)
	}
	if moved.Name != "new.txt" {
		t.Fatalf("renamed to %q", moved.Name)
	}
	if moved.ParentID != dev {
		t.Fatalf("rename moved the item to %d", moved.ParentID)
	}
}

func TestMoveOntoExistingFileIsConflict(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	fake.addItem(dev, "a.txt", KindFile, 1)
	fake.addItem(dev, "b.txt", KindFile, 1)

	drive := testDrive(fake)
	_, err := drive.Move(context.Background(), "/laptop/a.txt", "/laptop/b.txt")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestRestoreCWDTrustsPathOverID(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	docs := fake.addItem(dev, "docs", KindFolder, 0)

	drive := testDrive(fake)
	ctx := context.Background()
	if err := drive.RestoreCWD(ctx, "/laptop/docs"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if drive.CWDID != docs {
		t.Fatalf("restored id %d, want %d", drive.CWDID, docs)
	}

	// The folder was recreated remotely under a new ID; restoring by path
	// finds the new one.
	fake.removeItem(docs)
	recreated := fake.addItem(dev, "docs", KindFolder, 0)

	fresh := testDrive(fake)
	if err := fresh.RestoreCWD(ctx, "/laptop/docs"); err != nil {
		t.Fatalf("restore after recreate: %v", err)
	}
	if fresh.CWDID != recreated {
		t.Fatalf("restored id %d, want recreated %d", fresh.CWDID, recreated)
	}
}

func TestRestoreCWDMissingPathFails(t *testing.T) {
	fake := newFakeClient()
	fake.addItem(RootID, "laptop", KindDevice, 0)

	drive := testDrive(fake)
	err := drive.RestoreCWD(context.Background(), "/laptop/gone")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if !drive.CWD.IsRoot() {
		t.Fatalf("failed restore moved the working directory")
	}
}

func TestDriveUploadFileIntoWorkingDirectory(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)

	drive := testDrive(fake)
	ctx := context.Background()
	if _, err := drive.ChangeDir(ctx, "/laptop"); err != nil {
		t.Fatalf("cd: %v", err)
	}

	local := filepath.Join(t.TempDir(), "up.txt")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	item, err := drive.Upload(ctx, local, "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if item.ParentID != dev {
		t.Fatalf("uploaded under %d, want %d", item.ParentID, dev)
	}

	resolved, err := drive.Item(ctx, "up.txt")
	if err != nil {
		t.Fatalf("resolve uploaded file: %v", err)
	}
	if resolved.ID != item.ID {
		t.Fatalf("resolved a different item after upload")
	}
}

func TestDriveUploadDirectoryRecreatesTree(t *testing.T) {
	fake := newFakeClient()
	fake.addItem(RootID, "laptop", KindDevice, 0)

	local := t.TempDir()
	if err := os.MkdirAll(filepath.Join(local, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(local, "top.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(local, "sub", "deep.txt"), []byte("b"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	drive := testDrive(fake)
	ctx := context.Background()
	if _, err := drive.Upload(ctx, local, "/laptop"); err != nil {
		t.Fatalf("upload tree: %v", err)
	}

	base := filepath.Base(local)
	if _, err := drive.Item(ctx, "/laptop/"+base+"/top.txt"); err != nil {
		t.Fatalf("top-level file missing remotely: %v", err)
	}
	if _, err := drive.Item(ctx, "/laptop/"+base+"/sub/deep.txt"); err != nil {
		t.Fatalf("nested file missing remotely: %v", err)
	}
}

func TestDriveDownloadFolderRecursively(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	docs := fake.addItem(dev, "docs", KindFolder, 0)

	content := []byte("file body")
	sum, err := Checksum(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	fileID := fake.addItem(docs, "notes.txt", KindFile, uint64(len(content)))
	fake.mu.Lock()
	it := fake.items[fileID]
	it.Checksum = sum
	it.Data = base64.StdEncoding.EncodeToString(content)
	fake.items[fileID] = it
	fake.mu.Unlock()

	dest := t.TempDir()
	drive := testDrive(fake)
	if _, err := drive.Download(context.Background(), "/laptop/docs", dest); err != nil {
		t.Fatalf("download tree: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "docs", "notes.txt"))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestDriveUploadIfChangedSkipsMatchingRemote(t *testing.T) {
	content := []byte("same bytes")
	local := filepath.Join(t.TempDir(), "up.txt")
	if err := os.WriteFile(local, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum, err := ChecksumFile(local)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}

	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	existing := fake.addItem(dev, "up.txt", KindFile, uint64(len(content)))
	fake.mu.Lock()
	it := fake.items[existing]
	it.Checksum = sum
	fake.items[existing] = it
	fake.mu.Unlock()

	drive := testDrive(fake)
	drive.SetTransferOptions(TransferOptions{IfChanged: true})

	item, err := drive.Upload(context.Background(), local, "/laptop")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if item.ID != existing {
		t.Fatalf("skipped upload should report the existing item, got %d", item.ID)
	}
	if fake.beginCalls != 0 {
		t.Fatalf("unchanged file still opened %d upload sessions", fake.beginCalls)
	}
}

func TestDriveUploadIfChangedStillSendsModifiedContent(t *testing.T) {
	local := filepath.Join(t.TempDir(), "up.txt")
	if err := os.WriteFile(local, []byte("new bytes here"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	fake.addItem(dev, "up.txt", KindFile, 3)

	drive := testDrive(fake)
	drive.SetTransferOptions(TransferOptions{IfChanged: true})

	if _, err := drive.Upload(context.Background(), local, "/laptop"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if fake.beginCalls != 1 {
		t.Fatalf("modified file opened %d upload sessions, want 1", fake.beginCalls)
	}
}

func TestDriveDownloadIfMissingLeavesLocalFile(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	remote := []byte("remote version")
	fileID := fake.addItem(dev, "notes.txt", KindFile, uint64(len(remote)))
	fake.mu.Lock()
	it := fake.items[fileID]
	it.Data = base64.StdEncoding.EncodeToString(remote)
	fake.items[fileID] = it
	fake.mu.Unlock()

	dest := t.TempDir()
	prior := []byte("local version")
	if err := os.WriteFile(filepath.Join(dest, "notes.txt"), prior, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	drive := testDrive(fake)
	drive.SetTransferOptions(TransferOptions{IfMissing: true})
	if _, err := drive.Download(context.Background(), "/laptop/notes.txt", dest); err != nil {
		t.Fatalf("download: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "notes.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(prior) {
		t.Fatalf("existing local file was overwritten: %q", got)
	}
}
