package backend

import (
	"context"
	"sync"
	"testing"
)

func TestTreeCachePathOfRoundTrip(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	docs := fake.addItem(dev, "docs", KindFolder, 0)
	fake.addItem(docs, "notes.txt", KindFile, 42)

	cache := NewTreeCache(fake)
	resolver := NewResolver(cache, "/")

	ctx := context.Background()
	item, err := resolver.Resolve(ctx, nil, "/laptop/docs/notes.txt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	path, ok := cache.PathOf(item.ID)
	if !ok {
		t.Fatalf("PathOf found nothing for %d", item.ID)
	}
	if path.String() != "/laptop/docs/notes.txt" {
		t.Fatalf("unexpected path %q", path.String())
	}
}

func TestTreeCacheInvalidateIsIdempotent(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	fake.addItem(dev, "docs", KindFolder, 0)

	cache := NewTreeCache(fake)
	ctx := context.Background()
	if _, err := cache.GetChildren(ctx, dev); err != nil {
		t.Fatalf("prime: %v", err)
	}

	cache.Invalidate(dev)
	if cache.Listed(dev) {
		t.Fatalf("invalidated folder still marked listed")
	}
	if _, ok := cache.Get(dev); !ok {
		t.Fatalf("invalidated folder itself should survive as a stub")
	}

	cache.Invalidate(dev)
	if cache.Listed(dev) {
		t.Fatalf("second invalidate changed the listed state")
	}

	before := fake.listCount(dev)
	if _, err := cache.GetChildren(ctx, dev); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if fake.listCount(dev) != before+1 {
		t.Fatalf("expected exactly one refetch, got %d", fake.listCount(dev)-before)
	}
}

func TestTreeCacheInvalidateDropsDescendants(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	docs := fake.addItem(dev, "docs", KindFolder, 0)
	note := fake.addItem(docs, "notes.txt", KindFile, 42)

	cache := NewTreeCache(fake)
	resolver := NewResolver(cache, "/")
	ctx := context.Background()
	if _, err := resolver.Resolve(ctx, nil, "/laptop/docs/notes.txt"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	cache.Invalidate(dev)
	if _, ok := cache.Get(note); ok {
		t.Fatalf("descendant survived subtree invalidation")
	}
	if cache.Listed(docs) {
		t.Fatalf("descendant folder still marked listed")
	}
}

// Readers racing a wholesale child-set replacement must observe either the
// old or the new listing, never a mix.
func TestTreeCacheConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	for i := 0; i < 8; i++ {
		fake.addItem(dev, "gen1", KindFile, 1)
	}

	cache := NewTreeCache(fake)
	ctx := context.Background()
	if _, err := cache.GetChildren(ctx, dev); err != nil {
		t.Fatalf("prime: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				kids, err := cache.GetChildren(ctx, dev)
				if err != nil {
					t.Errorf("read: %v", err)
					return
				}
				names := map[string]int{}
				for _, kid := range kids {
					names[kid.Name]++
				}
				if len(names) > 1 {
					t.Errorf("torn snapshot: %v", names)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		fake.mu.Lock()
		for _, id := range fake.children[dev] {
			it := fake.items[id]
			if it.Name == "gen1" {
				it.Name = "gen2"
			} else {
				it.Name = "gen1"
			}
			fake.items[id] = it
		}
		fake.mu.Unlock()
		if _, err := cache.Refresh(ctx, dev); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestTreeCacheSyntheticInsertAvoidsRefetch(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)

	cache := NewTreeCache(fake)
	ctx := context.Background()
	if _, err := cache.GetChildren(ctx, dev); err != nil {
		t.Fatalf("prime: %v", err)
	}
	before := fake.listCount(dev)

	cache.InsertSynthetic(dev, RemoteItem{ID: 999, ParentID: dev, Name: "new", Kind: KindFolder})

	kids, err := cache.GetChildren(ctx, dev)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if fake.listCount(dev) != before {
		t.Fatalf("synthetic insert caused a refetch")
	}
	found := false
	for _, kid := range kids {
		if kid.ID == 999 {
			found = true
		}
	}
	if !found {
		t.Fatalf("synthetic child missing from listing")
	}
}

func TestTreeCacheSyntheticInsertOnUnlistedParentStaysPartial(t *testing.T) {
	fake := newFakeClient()
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	fake.addItem(dev, "existing", KindFolder, 0)

	cache := NewTreeCache(fake)
	cache.InsertSynthetic(dev, RemoteItem{ID: 999, ParentID: dev, Name: "new", Kind: KindFolder})
	if cache.Listed(dev) {
		t.Fatalf("inserting under an unlisted parent must not mark it listed")
	}

	// The next listing must come from the remote and include both children.
	kids, err := cache.GetChildren(context.Background(), dev)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(kids) != 1 || kids[0].Name != "existing" {
		t.Fatalf("unexpected listing %v", kids)
	}
}

func TestTreeCachePaginationDrainsAllPages(t *testing.T) {
	fake := newFakeClient()
	fake.pageSize = 3
	dev := fake.addItem(RootID, "laptop", KindDevice, 0)
	for i := 0; i < 8; i++ {
		fake.addItem(dev, string(rune('a'+i)), KindFile, 1)
	}

	cache := NewTreeCache(fake)
	kids, err := cache.GetChildren(context.Background(), dev)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(kids) != 8 {
		t.Fatalf("expected 8 children across pages, got %d", len(kids))
	}
	if fake.listCount(dev) != 3 {
		t.Fatalf("expected 3 pages, got %d", fake.listCount(dev))
	}
}
