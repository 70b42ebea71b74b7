package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bernd-wechner/Degoo/backend/chunker"
	"github.com/bernd-wechner/Degoo/internal"
)

type TransferDirection int

const (
	DirectionUpload TransferDirection = iota
	DirectionDownload
)

type TransferStatus int

const (
	StatusPending TransferStatus = iota
	StatusInProgress
	StatusRetrying
	StatusCompleted
	StatusFailed
)

func (s TransferStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in-progress"
	case StatusRetrying:
		return "retrying"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransferState is the ephemeral record of one active transfer, owned by
// the session that created it and discarded when the session ends.
type TransferState struct {
	ID               uuid.UUID
	ItemID           ItemID
	LocalPath        string
	Direction        TransferDirection
	BytesTransferred uint64
	TotalBytes       uint64
	Attempt          uint
	Status           TransferStatus
	LastErr          error
}

// ProgressSink lets the caller watch bytes move, e.g. to drive a terminal
// progress bar. Implementations wrap the stream; a nil sink means no
// reporting.
type ProgressSink interface {
	WrapReader(label string, total uint64, r io.Reader) io.Reader
	WrapWriter(label string, total uint64, w io.Writer) io.Writer
}

// SessionConfig wires a TransferSession. Client, Cache and Classifier are
// required; the rest defaults sensibly.
type SessionConfig struct {
	Client         Client
	Cache          *TreeCache
	Classifier     Classifier
	Policy         RetryPolicy
	ChunkSize      uint64
	ChunkThreshold uint64
	HTTPClient     *http.Client
	UserAgent      string
	Progress       ProgressSink
}

// TransferSession moves bytes between local storage and one remote item,
// surviving transient network failure. One session drives one transfer and
// is not reused.
type TransferSession struct {
	client         Client
	cache          *TreeCache
	classifier     Classifier
	policy         RetryPolicy
	chunkSize      uint64
	chunkThreshold uint64
	httpClient     *http.Client
	userAgent      string
	progress       ProgressSink
	state          TransferState
}

func NewTransferSession(cfg SessionConfig) *TransferSession {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 4 << 20
	}
	if cfg.ChunkThreshold == 0 {
		cfg.ChunkThreshold = cfg.ChunkSize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultRetryPolicy()
	}
	return &TransferSession{
		client:         cfg.Client,
		cache:          cfg.Cache,
		classifier:     cfg.Classifier,
		policy:         cfg.Policy,
		chunkSize:      cfg.ChunkSize,
		chunkThreshold: cfg.ChunkThreshold,
		httpClient:     cfg.HTTPClient,
		userAgent:      cfg.UserAgent,
		progress:       cfg.Progress,
	}
}

// State returns a snapshot of the session's transfer state.
func (s *TransferSession) State() TransferState { return s.state }

// Upload sends the local file at localPath into the remote folder parent.
// Content type comes from sniffing the bytes, never the extension. Files
// above the chunk threshold are split into sequential chunks; ordering is
// required because the remote assembles by offset. On success the parent's
// cached listing is invalidated and the new item returned.
func (s *TransferSession) Upload(ctx context.Context, localPath string, parent RemoteItem) (RemoteItem, error) {
	fi, err := os.Stat(localPath)
	if err != nil {
		return RemoteItem{}, err
	}
	size := uint64(fi.Size())
	name := filepath.Base(localPath)

	s.state = TransferState{
		ID:         uuid.New(),
		LocalPath:  localPath,
		Direction:  DirectionUpload,
		TotalBytes: size,
		Status:     StatusPending,
	}

	mime, err := ClassifyFile(s.classifier, localPath)
	if err != nil {
		return RemoteItem{}, err
	}
	sum, err := ChecksumFile(localPath)
	if err != nil {
		return RemoteItem{}, err
	}

	s.state.Status = StatusInProgress

	var handle UploadHandle
	err = s.retry(ctx, func() error {
		var err error
		handle, err = s.client.BeginUpload(ctx, parent.ID, name, mime, size)
		return err
	})
	if err != nil {
		return RemoteItem{}, s.fail(err, false)
	}
	handle.Checksum = sum

	if size > 0 {
		if err := s.uploadBody(ctx, localPath, name, size, handle); err != nil {
			return RemoteItem{}, err
		}
	}

	var item RemoteItem
	err = s.retry(ctx, func() error {
		var err error
		item, err = s.client.CompleteUpload(ctx, handle)
		return err
	})
	if err != nil {
		// The storage side may already hold the bytes; only the metadata
		// mutation failed. The parent listing can no longer be trusted.
		s.cache.Invalidate(parent.ID)
		return RemoteItem{}, s.fail(err, true)
	}

	s.state.ItemID = item.ID
	s.state.Status = StatusCompleted
	s.cache.Invalidate(parent.ID)

	internal.Debug("upload complete", internal.Fields{
		internal.FieldPath:   localPath,
		internal.FieldItemID: int64(item.ID),
		internal.FieldSize:   size,
	})
	return item, nil
}

func (s *TransferSession) uploadBody(ctx context.Context, localPath, name string, size uint64, handle UploadHandle) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var reader io.Reader = f
	if s.progress != nil {
		reader = s.progress.WrapReader(name, size, f)
	}

	chunkSize := s.chunkSize
	if size <= s.chunkThreshold {
		// One shot below the threshold.
		chunkSize = size
	}

	ckr := chunker.NewChunker(size, chunkSize)
	buf := make([]byte, chunkSize)
	for {
		chunk, ok := ckr.Next()
		if !ok {
			break
		}
		data := buf[:chunk.Length]
		if _, err := io.ReadFull(reader, data); err != nil {
			return s.fail(err, true)
		}

		err := s.retry(ctx, func() error {
			return s.client.UploadChunk(ctx, handle, chunk.Offset, data)
		})
		if err != nil {
			// The remote may hold a partial object now; its metadata must
			// not be trusted until refetched.
			s.cache.Invalidate(handle.ParentID)
			return s.fail(err, true)
		}
		s.state.Status = StatusInProgress
		s.state.BytesTransferred += chunk.Length
	}
	return nil
}

// Download streams the remote item to localPath. Retries re-request a fresh
// signed link per attempt; the link is short-lived and byte-range resumption
// is not guaranteed. The local handle is closed on every exit path and a
// failed verification removes the partial file rather than leaving it
// looking complete.
func (s *TransferSession) Download(ctx context.Context, item RemoteItem, localPath string) error {
	s.state = TransferState{
		ID:         uuid.New(),
		ItemID:     item.ID,
		LocalPath:  localPath,
		Direction:  DirectionDownload,
		TotalBytes: item.Size,
		Status:     StatusPending,
	}
	s.state.Status = StatusInProgress

	err := s.retry(ctx, func() error {
		s.state.BytesTransferred = 0
		return s.downloadOnce(ctx, item, localPath)
	})
	if err != nil {
		var ie *IntegrityError
		if errors.As(err, &ie) {
			s.state.Status = StatusFailed
			s.state.LastErr = err
			return err
		}
		return s.fail(err, false)
	}

	s.state.Status = StatusCompleted
	internal.Debug("download complete", internal.Fields{
		internal.FieldPath:   localPath,
		internal.FieldItemID: int64(item.ID),
		internal.FieldSize:   s.state.BytesTransferred,
	})
	return nil
}

func (s *TransferSession) downloadOnce(ctx context.Context, item RemoteItem, localPath string) (err error) {
	tmpPath := localPath + ".partial"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		cerr := out.Close()
		if err == nil && cerr != nil {
			err = cerr
		}
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	var writer io.Writer = out
	if s.progress != nil {
		writer = s.progress.WrapWriter(item.Name, item.Size, out)
	}

	written, err := s.fetchContent(ctx, item, writer)
	if err != nil {
		return err
	}
	s.state.BytesTransferred = uint64(written)

	if err := out.Sync(); err != nil {
		return err
	}
	if uint64(written) != item.Size {
		return &IntegrityError{
			Path:     localPath,
			Expected: fmt.Sprintf("%d bytes", item.Size),
			Actual:   fmt.Sprintf("%d bytes", written),
		}
	}
	if item.Checksum != "" {
		if err := verifyChecksum(tmpPath, localPath, item.Checksum); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *TransferSession) fetchContent(ctx context.Context, item RemoteItem, w io.Writer) (int64, error) {
	// Tiny items carry their content inline in metadata with no backing
	// object.
	if item.URL == "" && item.Data != "" {
		decoded, err := base64.StdEncoding.DecodeString(item.Data)
		if err != nil {
			return 0, err
		}
		n, err := w.Write(decoded)
		return int64(n), err
	}

	url, err := s.client.DownloadLink(ctx, item.ID)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, &TransientError{Op: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &TransientError{Op: "download", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return io.Copy(w, resp.Body)
}

func verifyChecksum(tmpPath, finalPath, expected string) error {
	actual, err := ChecksumFile(tmpPath)
	if err != nil {
		return err
	}
	if actual != expected {
		return &IntegrityError{Path: finalPath, Expected: expected, Actual: actual}
	}
	return nil
}

func (s *TransferSession) retry(ctx context.Context, op func() error) error {
	return s.policy.Do(ctx, op, func(attempt uint, err error) {
		s.state.Status = StatusRetrying
		s.state.Attempt = attempt
		internal.Warn("retrying after transient failure", internal.Fields{
			internal.FieldAttempt: attempt,
			internal.FieldPath:    s.state.LocalPath,
			internal.FieldError:   err.Error(),
		})
	})
}

// fail marks the session terminally failed and shapes the returned error.
func (s *TransferSession) fail(err error, partial bool) error {
	s.state.Status = StatusFailed
	s.state.LastErr = err
	return &TransferFailed{
		Path:        s.state.LocalPath,
		Attempts:    s.state.Attempt + 1,
		ItemPartial: partial,
		Err:         err,
	}
}
