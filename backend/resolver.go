package backend

import "context"

// Resolver translates user-supplied paths (absolute or relative, with "."
// and "..") into remote items, consulting and filling the TreeCache along
// the way. It never mutates the remote tree.
type Resolver struct {
	cache *TreeCache
	sep   string
}

// NewResolver builds a resolver splitting input on sep. An empty sep means
// the host's native separator as configured by the caller; the resolver
// itself only ever works on canonical segment lists.
func NewResolver(cache *TreeCache, sep string) *Resolver {
	if sep == "" {
		sep = "/"
	}
	return &Resolver{cache: cache, sep: sep}
}

// Canonicalize reduces base+input to a canonical segment list. ".." above
// the root clamps at the root rather than escaping the forest.
func (r *Resolver) Canonicalize(base CanonicalPath, input string) CanonicalPath {
	segments, absolute := SplitPath(input, r.sep)

	var out CanonicalPath
	if !absolute {
		out = append(out, base...)
	}
	for _, seg := range segments {
		switch seg {
		case ".":
		case "..":
			out = out.Parent()
		default:
			out = append(out, seg)
		}
	}
	return out
}

// Resolve walks the canonical form of base+input from the root, fetching
// listings on cache misses, and returns the item at that position.
func (r *Resolver) Resolve(ctx context.Context, base CanonicalPath, input string) (RemoteItem, error) {
	return r.ResolveCanonical(ctx, r.Canonicalize(base, input))
}

// ResolveCanonical walks an already-canonical segment list from the root.
func (r *Resolver) ResolveCanonical(ctx context.Context, target CanonicalPath) (RemoteItem, error) {
	current, _ := r.cache.Get(RootID)
	walked := CanonicalPath{}
	for _, seg := range target {
		child, err := r.childByName(ctx, current.ID, walked, seg)
		if err != nil {
			return RemoteItem{}, err
		}
		current = child
		walked = walked.Child(seg)
	}
	return current, nil
}

// childByName finds the child of parent named name. A miss against an
// already-cached listing triggers exactly one refetch before failing, since
// the cached listing may be stale.
func (r *Resolver) childByName(ctx context.Context, parent ItemID, parentPath CanonicalPath, name string) (RemoteItem, error) {
	cached := r.cache.Listed(parent)

	kids, err := r.cache.GetChildren(ctx, parent)
	if err != nil {
		return RemoteItem{}, err
	}
	item, found, err := matchName(kids, parent, name)
	if err != nil {
		return RemoteItem{}, err
	}
	if found {
		return item, nil
	}

	if cached {
		kids, err = r.cache.Refresh(ctx, parent)
		if err != nil {
			return RemoteItem{}, err
		}
		item, found, err = matchName(kids, parent, name)
		if err != nil {
			return RemoteItem{}, err
		}
		if found {
			return item, nil
		}
	}

	return RemoteItem{}, &NotFoundError{Segment: name, In: parentPath.String()}
}

func matchName(kids []RemoteItem, parent ItemID, name string) (RemoteItem, bool, error) {
	var match RemoteItem
	found := false
	for _, kid := range kids {
		if kid.Name != name {
			continue
		}
		if found {
			return RemoteItem{}, false, &AmbiguousNameError{Name: name, Parent: parent}
		}
		match = kid
		found = true
	}
	return match, found, nil
}
