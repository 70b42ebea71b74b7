package backend

import (
	"context"
	"sync"
)

// TreeCache mirrors the portion of the remote tree visited so far, keyed by
// item ID. A folder's children are trusted only once a complete listing has
// been installed; anything else is a stale stub. Mutations replace child sets
// wholesale under the write lock, so concurrent readers observe either the
// pre- or post-mutation state, never a torn mix.
type TreeCache struct {
	mu       sync.RWMutex
	client   Client
	items    map[ItemID]RemoteItem
	children map[ItemID][]ItemID
	listed   map[ItemID]bool
}

func NewTreeCache(client Client) *TreeCache {
	tc := &TreeCache{
		client:   client,
		items:    make(map[ItemID]RemoteItem),
		children: make(map[ItemID][]ItemID),
		listed:   make(map[ItemID]bool),
	}
	// The API returns no properties for the root, so a stub stands in for it.
	tc.items[RootID] = RemoteItem{ID: RootID, ParentID: RootID, Name: "/", Kind: KindFolder}
	return tc
}

// Get returns the cached item, if any.
func (tc *TreeCache) Get(id ItemID) (RemoteItem, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	it, ok := tc.items[id]
	return it, ok
}

// Listed reports whether id's children are fully cached.
func (tc *TreeCache) Listed(id ItemID) bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.listed[id]
}

// GetChildren returns the ordered children of id, fetching an exhaustive
// listing from the remote on a cache miss. The fetch happens outside the
// lock; a fetch aborted by ctx leaves the cache untouched.
func (tc *TreeCache) GetChildren(ctx context.Context, id ItemID) ([]RemoteItem, error) {
	tc.mu.RLock()
	if tc.listed[id] {
		out := tc.childItems(id)
		tc.mu.RUnlock()
		return out, nil
	}
	tc.mu.RUnlock()

	return tc.Refresh(ctx, id)
}

// Refresh unconditionally refetches the full listing for id and installs it,
// replacing any partial or synthetic entries.
func (tc *TreeCache) Refresh(ctx context.Context, id ItemID) ([]RemoteItem, error) {
	items, err := ListAllChildren(ctx, tc.client, id)
	if err != nil {
		return nil, err
	}

	tc.mu.Lock()
	// A node may get listed before its own parent was; keep a stub entry so
	// Invalidate can leave it behind and PathOf does not dead-end on it.
	if _, ok := tc.items[id]; !ok {
		tc.items[id] = RemoteItem{ID: id}
	}
	ids := make([]ItemID, 0, len(items))
	for _, it := range items {
		tc.items[it.ID] = it
		ids = append(ids, it.ID)
	}
	tc.children[id] = ids
	tc.listed[id] = true
	tc.mu.Unlock()

	return items, nil
}

// Invalidate drops the subtree rooted at id: child sets are cleared and the
// descendants forgotten, while id itself is kept as a stale stub. Calling it
// twice is the same as calling it once.
func (tc *TreeCache) Invalidate(id ItemID) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.dropSubtree(id, true)
}

// InsertSynthetic records an optimistic local child after a mutating call
// succeeded, avoiding a round trip. The next real fetch of the parent
// overwrites it.
func (tc *TreeCache) InsertSynthetic(parentID ItemID, item RemoteItem) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.items[item.ID] = item
	if !tc.listed[parentID] {
		return
	}
	for _, cid := range tc.children[parentID] {
		if cid == item.ID {
			return
		}
	}
	tc.children[parentID] = append(tc.children[parentID], item.ID)
}

// RemoveSynthetic forgets id locally after a confirmed remote delete.
func (tc *TreeCache) RemoveSynthetic(id ItemID) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if it, ok := tc.items[id]; ok {
		kids := tc.children[it.ParentID]
		for i, cid := range kids {
			if cid == id {
				tc.children[it.ParentID] = append(kids[:i:i], kids[i+1:]...)
				break
			}
		}
	}
	tc.dropSubtree(id, false)
}

// PathOf reconstructs the canonical path of a cached item by walking parent
// links up to the root.
func (tc *TreeCache) PathOf(id ItemID) (CanonicalPath, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	var rev []string
	for id != RootID {
		it, ok := tc.items[id]
		if !ok {
			return nil, false
		}
		rev = append(rev, it.Name)
		id = it.ParentID
	}
	out := make(CanonicalPath, len(rev))
	for i, seg := range rev {
		out[len(rev)-1-i] = seg
	}
	return out, true
}

// callers hold at least the read lock
func (tc *TreeCache) childItems(id ItemID) []RemoteItem {
	ids := tc.children[id]
	out := make([]RemoteItem, 0, len(ids))
	for _, cid := range ids {
		if it, ok := tc.items[cid]; ok {
			out = append(out, it)
		}
	}
	return out
}

// callers hold the write lock. keepRoot leaves the subtree root in place as
// a stale stub.
func (tc *TreeCache) dropSubtree(id ItemID, keepRoot bool) {
	for _, cid := range tc.children[id] {
		tc.dropSubtree(cid, false)
	}
	delete(tc.children, id)
	delete(tc.listed, id)
	if !keepRoot && id != RootID {
		delete(tc.items, id)
	}
}
