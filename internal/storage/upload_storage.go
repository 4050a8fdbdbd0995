// Package storage persists step attachments on the local filesystem.
// Files are grouped in one folder per ticket; the workflow only ever
// sees the returned reference, never the path layout.
package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"go.uber.org/zap"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Store writes uploaded attachments under a base directory and hands
// back public references for history rows.
type Store struct {
	baseDir    string
	publicPath string
	maxBytes   int64
	logger     *zap.Logger
	now        func() time.Time
}

// NewStore creates an upload store. publicPath is the URL prefix under
// which baseDir is served.
func NewStore(baseDir, publicPath string, maxSizeMB int, logger *zap.Logger) *Store {
	return &Store{
		baseDir:    baseDir,
		publicPath: publicPath,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		logger:     logger,
		now:        time.Now,
	}
}

// Save writes an attachment into the ticket's folder and returns its
// reference. The stored name is prefixed with a timestamp so repeated
// uploads of the same filename never collide.
func (s *Store) Save(ticketNumber, originalName string, content []byte) (*models.FileRef, error) {
	if originalName == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if s.maxBytes > 0 && int64(len(content)) > s.maxBytes {
		return nil, fmt.Errorf("file exceeds the %d MB limit", s.maxBytes/(1024*1024))
	}

	folder := sanitizeName(ticketNumber)
	if folder == "" {
		return nil, fmt.Errorf("invalid ticket number %q", ticketNumber)
	}
	fileName := fmt.Sprintf("%d_%s", s.now().UnixMilli(), sanitizeName(originalName))

	fullPath := filepath.Join(s.baseDir, folder, fileName)
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create attachment folder",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write attachment",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Attachment saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return &models.FileRef{
		URL:          path.Join(s.publicPath, folder, fileName),
		OriginalName: originalName,
	}, nil
}

// BaseDir returns the directory attachments are written to, for static
// file serving.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// validatePath rejects any resolved path outside the base directory.
func (s *Store) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

// sanitizeName strips path separators and anything else unsafe from a
// name destined for the filesystem.
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	return name
}
