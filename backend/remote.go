package backend

import "context"

// Credentials for the vendor login handshake.
type Credentials struct {
	Username string
	Password string
}

// SessionToken is the opaque bearer token the login endpoint returns. It is
// long-lived and persisted between invocations.
type SessionToken string

// UploadHandle carries everything the storage side needs to accept the byte
// stream of one upload: the signed target plus the metadata the completing
// mutation will need.
type UploadHandle struct {
	ParentID  ItemID
	Name      string
	MimeType  string
	TotalSize uint64
	URL       string
	Key       string
	Checksum  string
	Extra     map[string]string
}

// UserInfo describes the logged-in account.
type UserInfo struct {
	Name       string
	Email      string
	Phone      string
	Plan       string
	UsedQuota  uint64
	TotalQuota uint64
}

// Client is the remote API surface the core consumes. Implementations issue
// authenticated calls against the vendor backend; the core never sees wire
// formats. Every call honors ctx for cancellation and, on failure partway
// through, leaves no cache state behind (the cache applies results only on
// success).
type Client interface {
	Authenticate(ctx context.Context, creds Credentials) (SessionToken, error)

	// ListChildren returns one page of children and the token for the next
	// page, or "" when the listing is exhausted.
	ListChildren(ctx context.Context, parent ItemID, pageToken string) ([]RemoteItem, string, error)

	CreateFolder(ctx context.Context, parent ItemID, name string) (RemoteItem, error)
	DeleteItem(ctx context.Context, id ItemID) error
	RenameItem(ctx context.Context, id ItemID, newName string) error
	MoveItem(ctx context.Context, id ItemID, newParent ItemID) error

	BeginUpload(ctx context.Context, parent ItemID, name, mimeType string, totalSize uint64) (UploadHandle, error)
	UploadChunk(ctx context.Context, handle UploadHandle, offset uint64, data []byte) error
	CompleteUpload(ctx context.Context, handle UploadHandle) (RemoteItem, error)

	// DownloadLink returns a short-lived signed URL for the item's content.
	DownloadLink(ctx context.Context, id ItemID) (string, error)

	UserInfo(ctx context.Context) (UserInfo, error)
}

// ListAllChildren drains pagination for one parent. Partial pages are never
// returned: any page error discards what was gathered.
func ListAllChildren(ctx context.Context, c Client, parent ItemID) ([]RemoteItem, error) {
	var items []RemoteItem
	token := ""
	for {
		page, next, err := c.ListChildren(ctx, parent, token)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if next == "" {
			return items, nil
		}
		token = next
	}
}
