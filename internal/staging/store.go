// Package staging holds uploaded reports on local disk until a worker has
// processed them.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidFileType = errors.New("only PDF files are supported")

const filePrefix = "blood_test_report_"

// ValidateFilename checks that name has a .pdf extension (case insensitive).
func ValidateFilename(name string) error {
	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		return ErrInvalidFileType
	}
	return nil
}

// Store writes uploads into a single staging directory under collision-free
// names.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger, now: time.Now}
}

func (s *Store) Dir() string { return s.dir }

// IDFromPath returns the id embedded in a staged file name, or "" if path was
// not produced by Save. Queued jobs take this id so a staged file can be
// traced back to its job.
func IDFromPath(path string) string {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, filePrefix) || filepath.Ext(name) != ".pdf" {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".pdf")
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

// InUseFunc reports whether the staged file with the given id still belongs to
// a job that has not finished.
type InUseFunc func(ctx context.Context, id string) (bool, error)

// Save copies r into blood_test_report_<uuid>.pdf and returns the path. The
// directory is created on demand. A partially written file is removed.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	if err := ValidateFilename(originalName); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating staging dir: %w", err)
	}

	path := filepath.Join(s.dir, filePrefix+uuid.NewString()+".pdf")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating staged file: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("writing staged file: %w", err)
	}

	s.logger.Debug("upload staged", "path", path, "original_name", originalName, "bytes", n)
	return path, nil
}

// Remove deletes a staged file. Removing a file that is already gone is not
// an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing staged file: %w", err)
	}
	return nil
}

// Sweep deletes staged files last modified more than maxAge ago and returns
// how many were removed. Files not created by Save are left alone, as are
// files inUse reports as live. A lookup error keeps the file for the next run.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration, inUse InUseFunc) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading staging dir: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		id := IDFromPath(e.Name())
		if e.IsDir() || id == "" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if inUse != nil {
			live, err := inUse(ctx, id)
			if err != nil {
				s.logger.Warn("sweep: job lookup failed, keeping file", "file", e.Name(), "error", err)
				continue
			}
			if live {
				continue
			}
		}
		if err := s.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Warn("sweep: failed to remove staged file", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
