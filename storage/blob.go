package storage

import (
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	DefaultMaxUploadBytes = 5 << 20
	UploadsPath           = "/uploads/"
)

// DiskBlobStore keeps attachments as flat files named after a random id.
// The declared content type is informative only, the stored type is sniffed.
type DiskBlobStore struct {
	log      *slog.Logger
	dir      string
	baseURL  string
	maxBytes int
}

func NewDiskBlobStore(log *slog.Logger, dir, baseURL string, maxBytes int) (*DiskBlobStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &DiskBlobStore{
		log:      log,
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}, nil
}

// Put validates then writes data and returns its public URL.
func (s *DiskBlobStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", errors.ErrValidation)
	}
	if len(data) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", errors.ErrFileTooLarge, len(data), s.maxBytes)
	}
	detected := mimetypes.ToMIME(mimetype.Detect(data).String())
	if !mimetypes.Allowed(detected) {
		return "", fmt.Errorf("%w: %s", errors.ErrFileTypeNotAllowed, detected)
	}
	if declared := mimetypes.ToMIME(contentType); contentType != "" && declared != detected {
		s.log.Debug("Declared content type differs from detected one",
			"declared", declared, "detected", detected)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + mimetypes.Extension(detected)
	if err := s.write(name, data); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	s.log.Debug("Blob stored", "name", name, "mime", detected, "size", len(data))
	return s.baseURL + UploadsPath + name, nil
}

// write goes through a temp file so a reader never sees a partial blob.
func (s *DiskBlobStore) write(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

func (s *DiskBlobStore) Dir() string {
	return s.dir
}
