package backend

import (
	"context"
	"fmt"
	"sync"
)

// fakeClient serves a canned remote tree from memory and counts calls, so
// tests can assert how often the cache actually goes to the remote.
type fakeClient struct {
	mu       sync.Mutex
	items    map[ItemID]RemoteItem
	children map[ItemID][]ItemID
	nextID   ItemID

	listCalls     map[ItemID]int
	beginCalls    int
	chunkOffsets  []uint64
	chunkSizes    []int
	completeCalls int
	deleteCalls   int

	failUploads int // chunk calls to fail with a transient error before succeeding
	pageSize    int // children per listing page, 0 means everything in one page
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		items:     map[ItemID]RemoteItem{},
		children:  map[ItemID][]ItemID{},
		nextID:    100,
		listCalls: map[ItemID]int{},
	}
}

// addItem installs an item under parent and returns its ID.
func (f *fakeClient) addItem(parent ItemID, name string, kind ItemKind, size uint64) ItemID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.items[id] = RemoteItem{ID: id, ParentID: parent, Name: name, Kind: kind, Size: size}
	f.children[parent] = append(f.children[parent], id)
	return id
}

func (f *fakeClient) removeItem(id ItemID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return
	}
	kids := f.children[it.ParentID]
	for i, cid := range kids {
		if cid == id {
			f.children[it.ParentID] = append(kids[:i:i], kids[i+1:]...)
			break
		}
	}
	delete(f.items, id)
}

func (f *fakeClient) listCount(id ItemID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[id]
}

func (f *fakeClient) totalListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.listCalls {
		total += n
	}
	return total
}

func (f *fakeClient) Authenticate(ctx context.Context, creds Credentials) (SessionToken, error) {
	if creds.Password == "" {
		return "", &AuthError{Reason: "empty password"}
	}
	return "fake-token", nil
}

func (f *fakeClient) ListChildren(ctx context.Context, parent ItemID, pageToken string) ([]RemoteItem, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[parent]++

	ids := f.children[parent]
	out := make([]RemoteItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.items[id])
	}

	if f.pageSize <= 0 || len(out) <= f.pageSize {
		return out, "", nil
	}

	start := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "%d", &start)
	}
	end := start + f.pageSize
	next := fmt.Sprintf("%d", end)
	if end >= len(out) {
		end = len(out)
		next = ""
	}
	return out[start:end], next, nil
}

func (f *fakeClient) CreateFolder(ctx context.Context, parent ItemID, name string) (RemoteItem, error) {
	id := f.addItem(parent, name, KindFolder, 0)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id], nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, id ItemID) error {
	f.mu.Lock()
	f.deleteCalls++
	f.mu.Unlock()
	f.removeItem(id)
	return nil
}

func (f *fakeClient) RenameItem(ctx context.Context, id ItemID, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return &NotFoundError{Segment: fmt.Sprintf("%d", id)}
	}
	it.Name = newName
	f.items[id] = it
	return nil
}

func (f *fakeClient) MoveItem(ctx context.Context, id ItemID, newParent ItemID) error {
	f.mu.Lock()
	it, ok := f.items[id]
	f.mu.Unlock()
	if !ok {
		return &NotFoundError{Segment: fmt.Sprintf("%d", id)}
	}
	f.removeItem(id)
	f.mu.Lock()
	it.ParentID = newParent
	f.items[id] = it
	f.children[newParent] = append(f.children[newParent], id)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) BeginUpload(ctx context.Context, parent ItemID, name, mimeType string, totalSize uint64) (UploadHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginCalls++
	return UploadHandle{
		ParentID:  parent,
		Name:      name,
		MimeType:  mimeType,
		TotalSize: totalSize,
	}, nil
}

func (f *fakeClient) UploadChunk(ctx context.Context, handle UploadHandle, offset uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUploads > 0 {
		f.failUploads--
		return &TransientError{Op: "upload chunk", Err: fmt.Errorf("fake outage")}
	}
	f.chunkOffsets = append(f.chunkOffsets, offset)
	f.chunkSizes = append(f.chunkSizes, len(data))
	return nil
}

func (f *fakeClient) CompleteUpload(ctx context.Context, handle UploadHandle) (RemoteItem, error) {
	f.mu.Lock()
	f.completeCalls++
	f.mu.Unlock()
	id := f.addItem(handle.ParentID, handle.Name, KindFile, handle.TotalSize)
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.items[id]
	it.Checksum = handle.Checksum
	f.items[id] = it
	return it, nil
}

func (f *fakeClient) DownloadLink(ctx context.Context, id ItemID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return "", &NotFoundError{Segment: fmt.Sprintf("%d", id)}
	}
	if it.URL == "" {
		return "", &NotFoundError{Segment: fmt.Sprintf("download URL for %d", id)}
	}
	return it.URL, nil
}

func (f *fakeClient) UserInfo(ctx context.Context) (UserInfo, error) {
	return UserInfo{Name: "Test User", Email: "test@example.com", Plan: "Free 100 GB"}, nil
}
