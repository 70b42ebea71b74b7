// Package degoo is the concrete Remote API Client for the Degoo web API: a
// REST login handshake plus a GraphQL endpoint for everything else. The
// request and response shapes here are reverse engineered from the web
// app's traffic; nothing outside this package sees them.
package degoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bernd-wechner/Degoo/backend"
	"github.com/bernd-wechner/Degoo/internal"
)

// listLimit is, empirically, the largest page size the listing operation
// accepts before it fails with "Too large input!".
const listLimit = 1000

// Config carries the endpoint parameters. Zero values fall back to the
// production endpoints the web app talks to.
type Config struct {
	APIURL     string
	LoginURL   string
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client
}

type Client struct {
	apiURL     string
	loginURL   string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	token      backend.SessionToken
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://production-appsync.degoo.com/graphql"
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = "https://rest-api.degoo.com/login"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Degoo-client/0.3"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{
		apiURL:     cfg.APIURL,
		loginURL:   cfg.LoginURL,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		httpClient: cfg.HTTPClient,
	}
}

// SetToken installs a previously persisted session token.
func (c *Client) SetToken(token backend.SessionToken) { c.token = token }

func (c *Client) Token() backend.SessionToken { return c.token }

// Authenticate performs the REST login handshake and keeps the returned
// token for subsequent GraphQL calls. The endpoint is picky about the
// User-Agent and rejects unknown ones outright.
func (c *Client) Authenticate(ctx context.Context, creds backend.Credentials) (backend.SessionToken, error) {
	body, err := json.Marshal(map[string]any{
		"Username":      creds.Username,
		"Password":      creds.Password,
		"GenerateToken": true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://app.degoo.com")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &backend.TransientError{Op: "login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &backend.AuthError{Reason: resp.Status}
	}

	var reply struct {
		Token string `json:"Token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", err
	}
	if reply.Token == "" {
		return "", &backend.AuthError{Reason: "login reply carried no token"}
	}

	c.token = backend.SessionToken(reply.Token)
	return c.token, nil
}

func (c *Client) ListChildren(ctx context.Context, parent backend.ItemID, pageToken string) ([]backend.RemoteItem, string, error) {
	variables := map[string]any{
		"Token":    string(c.token),
		"ParentID": strconv.FormatInt(int64(parent), 10),
		"Limit":    listLimit,
		"Order":    3,
	}
	if pageToken != "" {
		variables["NextToken"] = pageToken
	}

	query := `query GetFileChildren3($Token: String!, $ParentID: String!, $Limit: Int!, $Order: Int, $NextToken: String) {
		getFileChildren3(Token: $Token, ParentID: $ParentID, Limit: $Limit, Order: $Order, NextToken: $NextToken) {
			Items { ` + itemProperties + ` } NextToken __typename
		}
	}`

	var reply struct {
		GetFileChildren3 struct {
			Items     []rawItem `json:"Items"`
			NextToken string    `json:"NextToken"`
		} `json:"getFileChildren3"`
	}
	if err := c.graphql(ctx, "GetFileChildren3", query, variables, &reply); err != nil {
		// The backend reports a nonexistent directory as an input error
		// rather than an empty listing.
		if strings.Contains(err.Error(), "Invalid input!") {
			return nil, "", &backend.NotFoundError{Segment: strconv.FormatInt(int64(parent), 10)}
		}
		return nil, "", err
	}

	items := make([]backend.RemoteItem, 0, len(reply.GetFileChildren3.Items))
	for _, raw := range reply.GetFileChildren3.Items {
		item, err := raw.toRemoteItem()
		if err != nil {
			return nil, "", fmt.Errorf("listing of %d: %w", parent, err)
		}
		items = append(items, item)
	}
	return items, reply.GetFileChildren3.NextToken, nil
}

// CreateFolder creates a folder through the same mutation uploads use, with
// zero size and the empty-content checksum. The mutation does not return
// the new ID, so the parent is re-listed to find it.
func (c *Client) CreateFolder(ctx context.Context, parent backend.ItemID, name string) (backend.RemoteItem, error) {
	if err := c.setUploadFile(ctx, name, parent, 0, backend.EmptyChecksum); err != nil {
		return backend.RemoteItem{}, err
	}
	return c.findChild(ctx, parent, name)
}

func (c *Client) DeleteItem(ctx context.Context, id backend.ItemID) error {
	query := `mutation SetDeleteFile5($Token: String!, $IsInRecycleBin: Boolean!, $IDs: [IDType]!) {
		setDeleteFile5(Token: $Token, IsInRecycleBin: $IsInRecycleBin, IDs: $IDs)
	}`
	variables := map[string]any{
		"Token":          string(c.token),
		"IDs":            []map[string]any{{"FileID": int64(id)}},
		"IsInRecycleBin": false,
	}
	var reply json.RawMessage
	return c.graphql(ctx, "SetDeleteFile5", query, variables, &reply)
}

func (c *Client) RenameItem(ctx context.Context, id backend.ItemID, newName string) error {
	query := `mutation SetRenameFile($Token: String!, $FileRenames: [FileRenameInfo]!) {
		setRenameFile(Token: $Token, FileRenames: $FileRenames)
	}`
	variables := map[string]any{
		"Token": string(c.token),
		"FileRenames": []map[string]any{{
			"ID":      int64(id),
			"NewName": newName,
		}},
	}
	var reply json.RawMessage
	return c.graphql(ctx, "SetRenameFile", query, variables, &reply)
}

func (c *Client) MoveItem(ctx context.Context, id backend.ItemID, newParent backend.ItemID) error {
	query := `mutation SetMoveFile($Token: String!, $Copy: Boolean, $NewParentID: String!, $FileIDs: [String]!) {
		setMoveFile(Token: $Token, Copy: $Copy, NewParentID: $NewParentID, FileIDs: $FileIDs)
	}`
	variables := map[string]any{
		"Token":       string(c.token),
		"NewParentID": strconv.FormatInt(int64(newParent), 10),
		"FileIDs":     []string{strconv.FormatInt(int64(id), 10)},
	}
	var reply json.RawMessage
	return c.graphql(ctx, "SetMoveFile", query, variables, &reply)
}

// BeginUpload asks for write authorization into the parent folder. The
// reply carries the storage URL plus the signed form fields the storage
// side expects alongside every posted byte range.
func (c *Client) BeginUpload(ctx context.Context, parent backend.ItemID, name, mimeType string, totalSize uint64) (backend.UploadHandle, error) {
	query := `query GetBucketWriteAuth4($Token: String!, $ParentID: String!, $StorageUploadInfos: [StorageUploadInfo2]) {
		getBucketWriteAuth4(Token: $Token, ParentID: $ParentID, StorageUploadInfos: $StorageUploadInfos) {
			AuthData { PolicyBase64 Signature BaseURL KeyPrefix AccessKey {Key Value __typename} ACL AdditionalBody {Key Value __typename} __typename }
		}
	}`
	variables := map[string]any{
		"Token":              string(c.token),
		"ParentID":           strconv.FormatInt(int64(parent), 10),
		"StorageUploadInfos": []any{},
	}

	var reply struct {
		GetBucketWriteAuth4 []struct {
			AuthData struct {
				PolicyBase64 string `json:"PolicyBase64"`
				Signature    string `json:"Signature"`
				BaseURL      string `json:"BaseURL"`
				KeyPrefix    string `json:"KeyPrefix"`
				ACL          string `json:"ACL"`
				AccessKey    struct {
					Key   string `json:"Key"`
					Value string `json:"Value"`
				} `json:"AccessKey"`
				AdditionalBody []struct {
					Key   string `json:"Key"`
					Value string `json:"Value"`
				} `json:"AdditionalBody"`
			} `json:"AuthData"`
		} `json:"getBucketWriteAuth4"`
	}
	if err := c.graphql(ctx, "GetBucketWriteAuth4", query, variables, &reply); err != nil {
		return backend.UploadHandle{}, err
	}
	if len(reply.GetBucketWriteAuth4) == 0 {
		return backend.UploadHandle{}, fmt.Errorf("upload auth for %d: empty reply", parent)
	}

	auth := reply.GetBucketWriteAuth4[0].AuthData
	extra := map[string]string{
		"policy":    auth.PolicyBase64,
		"signature": auth.Signature,
		"acl":       auth.ACL,
	}
	if auth.AccessKey.Key != "" {
		extra[auth.AccessKey.Key] = auth.AccessKey.Value
	}
	for _, kv := range auth.AdditionalBody {
		extra[kv.Key] = kv.Value
	}

	return backend.UploadHandle{
		ParentID:  parent,
		Name:      name,
		MimeType:  mimeType,
		TotalSize: totalSize,
		URL:       auth.BaseURL,
		Key:       auth.KeyPrefix,
		Extra:     extra,
	}, nil
}

// UploadChunk posts one byte range to the storage URL with its offset and
// the total size, so the far side can assemble by offset. 204 is the
// storage side's silent acknowledgement of success.
func (c *Client) UploadChunk(ctx context.Context, handle backend.UploadHandle, offset uint64, data []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for key, value := range handle.Extra {
		if err := form.WriteField(key, value); err != nil {
			return err
		}
	}
	if err := form.WriteField("key", c.storageKey(handle)); err != nil {
		return err
	}
	if err := form.WriteField("Content-Type", handle.MimeType); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", handle.Name)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, handle.URL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("ngsw-bypass", "1")
	end := offset + uint64(len(data))
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end-1, handle.TotalSize))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &backend.TransientError{Op: "upload chunk", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &backend.TransientError{Op: "upload chunk", Err: fmt.Errorf("storage replied %s", resp.Status)}
	default:
		return fmt.Errorf("upload chunk at offset %d rejected: %s", offset, resp.Status)
	}
}

// CompleteUpload registers the uploaded content as a tree item. Like folder
// creation, the mutation returns no ID, so the parent is re-listed.
func (c *Client) CompleteUpload(ctx context.Context, handle backend.UploadHandle) (backend.RemoteItem, error) {
	if err := c.setUploadFile(ctx, handle.Name, handle.ParentID, handle.TotalSize, handle.Checksum); err != nil {
		return backend.RemoteItem{}, err
	}
	return c.findChild(ctx, handle.ParentID, handle.Name)
}

// DownloadLink fetches the item's current signed content URL. Links are
// signed server-side and expire; callers request a fresh one per attempt.
func (c *Client) DownloadLink(ctx context.Context, id backend.ItemID) (string, error) {
	raw, err := c.getOverlay(ctx, id)
	if err != nil {
		return "", err
	}
	if raw.OptimizedURL != "" {
		return raw.OptimizedURL, nil
	}
	if raw.URL != "" {
		return raw.URL, nil
	}
	return "", &backend.NotFoundError{Segment: fmt.Sprintf("download URL for item %d", id)}
}

func (c *Client) UserInfo(ctx context.Context) (backend.UserInfo, error) {
	query := `query GetUserInfo($Token: String!) {
		getUserInfo(Token: $Token) { Name Email Phone AvatarURL AccountType UsedQuota TotalQuota __typename }
	}`
	variables := map[string]any{"Token": string(c.token)}

	var reply struct {
		GetUserInfo struct {
			Name        string `json:"Name"`
			Email       string `json:"Email"`
			Phone       string `json:"Phone"`
			AccountType int    `json:"AccountType"`
			UsedQuota   string `json:"UsedQuota"`
			TotalQuota  string `json:"TotalQuota"`
		} `json:"getUserInfo"`
	}
	if err := c.graphql(ctx, "GetUserInfo", query, variables, &reply); err != nil {
		return backend.UserInfo{}, err
	}

	used, _ := strconv.ParseUint(reply.GetUserInfo.UsedQuota, 10, 64)
	total, _ := strconv.ParseUint(reply.GetUserInfo.TotalQuota, 10, 64)
	return backend.UserInfo{
		Name:       reply.GetUserInfo.Name,
		Email:      reply.GetUserInfo.Email,
		Phone:      reply.GetUserInfo.Phone,
		Plan:       planName(reply.GetUserInfo.AccountType),
		UsedQuota:  used,
		TotalQuota: total,
	}, nil
}

func (c *Client) setUploadFile(ctx context.Context, name string, parent backend.ItemID, size uint64, checksum string) error {
	query := `mutation SetUploadFile3($Token: String!, $FileInfos: [FileInfoUpload3]!) {
		setUploadFile3(Token: $Token, FileInfos: $FileInfos)
	}`
	variables := map[string]any{
		"Token": string(c.token),
		"FileInfos": []map[string]any{{
			"Checksum":     checksum,
			"Name":         name,
			"CreationTime": time.Now().UnixMilli(),
			"ParentID":     int64(parent),
			"Size":         size,
		}},
	}
	var reply json.RawMessage
	return c.graphql(ctx, "SetUploadFile3", query, variables, &reply)
}

// findChild re-lists parent and picks out the item named name, for the
// mutations that create items without returning them.
func (c *Client) findChild(ctx context.Context, parent backend.ItemID, name string) (backend.RemoteItem, error) {
	items, err := backend.ListAllChildren(ctx, c, parent)
	if err != nil {
		return backend.RemoteItem{}, err
	}
	for _, item := range items {
		if item.Name == name {
			return item, nil
		}
	}
	return backend.RemoteItem{}, &NotFoundAfterMutation{Name: name, Parent: parent}
}

// getOverlay fetches a single item's metadata by ID.
func (c *Client) getOverlay(ctx context.Context, id backend.ItemID) (*rawItem, error) {
	query := `query GetOverlay3($Token: String!, $ID: IDType!) {
		getOverlay3(Token: $Token, ID: $ID) { ` + itemProperties + ` }
	}`
	variables := map[string]any{
		"Token": string(c.token),
		"ID":    map[string]any{"FileID": int64(id)},
	}

	var reply struct {
		GetOverlay3 *rawItem `json:"getOverlay3"`
	}
	if err := c.graphql(ctx, "GetOverlay3", query, variables, &reply); err != nil {
		return nil, err
	}
	if reply.GetOverlay3 == nil {
		return nil, &backend.NotFoundError{Segment: strconv.FormatInt(int64(id), 10)}
	}
	return reply.GetOverlay3, nil
}

// storageKey builds the object key under the authorized prefix. The web
// app uses extension/checksum.extension, or "@" where there is none.
func (c *Client) storageKey(handle backend.UploadHandle) string {
	ext := "@"
	if i := strings.LastIndexByte(handle.Name, '.'); i >= 0 && i < len(handle.Name)-1 {
		ext = handle.Name[i+1:]
	}
	return fmt.Sprintf("%s%s/%s.%s", handle.Key, ext, handle.Checksum, ext)
}

func (c *Client) graphql(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{
		"operationName": operation,
		"variables":     variables,
		"query":         query,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &backend.TransientError{Op: operation, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &backend.TransientError{Op: operation, Err: fmt.Errorf("server replied %s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed with %s", operation, resp.Status)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode reply: %w", operation, err)
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, e.Message)
		}
		message := strings.Join(messages, "\n")
		if strings.Contains(message, "Not authorized") || strings.Contains(message, "Invalid token") {
			return &backend.AuthError{Reason: message}
		}
		return fmt.Errorf("%s failed with: %s", operation, message)
	}

	internal.Debug("graphql call ok", internal.Fields{internal.FieldMsg: operation})
	return json.Unmarshal(envelope.Data, out)
}

func planName(accountType int) string {
	switch accountType {
	case 0:
		return "Free 100 GB"
	case 1:
		return "Pro 500 GB"
	case 2:
		return "Ultimate 10 TB"
	case 3:
		return "Ultimate Stackcommerce offer 10 TB"
	default:
		return fmt.Sprintf("Plan %d", accountType)
	}
}

// NotFoundAfterMutation reports a create that the backend accepted but
// whose result never appeared in the parent listing.
type NotFoundAfterMutation struct {
	Name   string
	Parent backend.ItemID
}

func (e *NotFoundAfterMutation) Error() string {
	return fmt.Sprintf("%q not found under item %d after mutation", e.Name, e.Parent)
}
