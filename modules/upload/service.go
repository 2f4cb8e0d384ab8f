package upload

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	domain "github.com/example/realtime-chat/domain/chat"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	nanoid "github.com/jaevor/go-nanoid"
)

// Upload defaults.
const (
	DefaultMaxSize  = 5 * 1024 * 1024
	RetrievalPrefix = "/uploads/"
	suffixLength    = 12
)

// Metadata headers stored with every object.
const (
	headerContentType  = "Content-Type"
	headerOriginalName = "Original-Name"
	headerUploadedAt   = "Uploaded-At"
)

// sanitizeFilename keeps the last element of a client-side path in either
// separator style and drops control characters.
func sanitizeFilename(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	name := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, filename))
	switch name {
	case "", ".", "..":
		return "unnamed"
	}
	return name
}

// validateName rejects storage names that could address another key.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Service stores uploads in an object bucket and describes them for chat messages.
type Service struct {
	bucket  fsjetstream.FileStoragePort
	maxSize int64
	suffix  func() string
	clock   func() time.Time
}

// NewService creates an upload service over bucket. A non-positive maxSize means DefaultMaxSize.
func NewService(bucket fsjetstream.FileStoragePort, maxSize int64) (*Service, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	suffix, err := nanoid.Standard(suffixLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create name generator: %w", err)
	}
	return &Service{
		bucket:  bucket,
		maxSize: maxSize,
		suffix:  suffix,
		clock:   time.Now,
	}, nil
}

// MaxSize returns the upload size ceiling in bytes.
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// CheckSize rejects sizes above the ceiling before any bytes are read.
func (s *Service) CheckSize(size int64) error {
	if size > s.maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, s.maxSize)
	}
	return nil
}

// storageName builds a collision-free key that keeps the original extension.
func (s *Service) storageName(original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + s.suffix() + ext
}

// Upload stores data and returns its descriptor.
func (s *Service) Upload(ctx context.Context, originalName, contentType string, data []byte) (domain.FileDescriptor, error) {
	if len(data) == 0 {
		return domain.FileDescriptor{}, ErrEmptyFile
	}
	if err := s.CheckSize(int64(len(data))); err != nil {
		return domain.FileDescriptor{}, err
	}

	now := s.clock()
	safeName := sanitizeFilename(originalName)
	contentType = resolveContentType(contentType, safeName)
	name := s.storageName(safeName, now)

	info, err := s.bucket.Put(ctx, name, data,
		fsjetstream.WithDescription(fmt.Sprintf("Upload: %s", safeName)),
		fsjetstream.WithHeaders(map[string]string{
			headerContentType:  contentType,
			headerOriginalName: safeName,
			headerUploadedAt:   now.Format(time.RFC3339),
		}),
	)
	if err != nil {
		return domain.FileDescriptor{}, fmt.Errorf("failed to store file: %w", err)
	}

	return domain.FileDescriptor{
		Filename:     name,
		OriginalName: safeName,
		Size:         int64(info.Size),
		MimeType:     contentType,
		URL:          RetrievalPrefix + name,
	}, nil
}

// find looks up an object by exact storage name.
func (s *Service) find(name string) (*fsjetstream.ObjectInfo, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	objects, err := s.bucket.List(fsjetstream.WithPrefix(name))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	for i := range objects {
		if objects[i].Name == name {
			return &objects[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
}

// Describe returns the descriptor of a stored upload.
func (s *Service) Describe(name string) (domain.FileDescriptor, error) {
	obj, err := s.find(name)
	if err != nil {
		return domain.FileDescriptor{}, err
	}
	return describe(obj), nil
}

// Open streams a stored upload. The caller closes the reader.
func (s *Service) Open(name string) (io.ReadCloser, domain.FileDescriptor, error) {
	obj, err := s.find(name)
	if err != nil {
		return nil, domain.FileDescriptor{}, err
	}
	reader, _, err := s.bucket.GetReader(obj.Name)
	if err != nil {
		return nil, domain.FileDescriptor{}, fmt.Errorf("failed to get file stream: %w", err)
	}
	return reader, describe(obj), nil
}

func describe(obj *fsjetstream.ObjectInfo) domain.FileDescriptor {
	original := obj.Headers[headerOriginalName]
	if original == "" {
		original = obj.Name
	}
	contentType := obj.Headers[headerContentType]
	if contentType == "" {
		contentType = detectContentType(obj.Name)
	}
	return domain.FileDescriptor{
		Filename:     obj.Name,
		OriginalName: original,
		Size:         int64(obj.Size),
		MimeType:     contentType,
		URL:          RetrievalPrefix + obj.Name,
	}
}
