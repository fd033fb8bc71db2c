package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdf-toolbox/backend/internal/models"
)

// ErrFileTooLarge is returned by Save when a part exceeds the spool's per-file limit.
var ErrFileTooLarge = errors.New("file exceeds maximum upload size")

// Spool defines the interface for temporary upload storage.
type Spool interface {
	Save(name, contentType string, r io.Reader) (*models.SpooledFile, error)
	Remove(id string) error
	RemoveAll(files []*models.SpooledFile) error
	Pending() int
	Sweep(maxAge time.Duration) (int, error)
}

// LocalSpool implements Spool on the local filesystem.
type LocalSpool struct {
	mu          sync.Mutex
	dir         string
	maxFileSize int64
	files       map[string]*models.SpooledFile
}

// NewLocalSpool creates a new LocalSpool. A maxFileSize of zero disables the limit.
func NewLocalSpool(dir string, maxFileSize int64) (*LocalSpool, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}

	return &LocalSpool{
		dir:         dir,
		maxFileSize: maxFileSize,
		files:       make(map[string]*models.SpooledFile),
	}, nil
}

// Dir returns the spool directory.
func (s *LocalSpool) Dir() string {
	return s.dir
}

// Save copies r into a new spool file. The original extension is kept so the
// vendor can recognise the format.
func (s *LocalSpool) Save(name, contentType string, r io.Reader) (*models.SpooledFile, error) {
	id := uuid.New().String()
	path := filepath.Join(s.dir, id+safeExt(name))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	src := r
	if s.maxFileSize > 0 {
		src = io.LimitReader(r, s.maxFileSize+1)
	}
	size, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		os.Remove(path)
		return nil, fmt.Errorf("%s: %w", name, ErrFileTooLarge)
	}

	info := &models.SpooledFile{
		ID:          id,
		Name:        name,
		Path:        path,
		Size:        size,
		ContentType: contentType,
		SpooledAt:   time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// Remove deletes one spooled file.
func (s *LocalSpool) Remove(id string) error {
	s.mu.Lock()
	info, ok := s.files[id]
	delete(s.files, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// RemoveAll attempts to delete every file and reports all failures together.
func (s *LocalSpool) RemoveAll(files []*models.SpooledFile) error {
	var errs []error
	for _, f := range files {
		if err := s.Remove(f.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending returns the number of files currently tracked.
func (s *LocalSpool) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Sweep removes spool files older than maxAge, including files left behind by
// a previous process that this spool never tracked. Only names the spool
// generates are considered; anything else in the directory is left alone.
// Tracked files are aged by when they were spooled.
func (s *LocalSpool) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading spool directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, err := uuid.Parse(id); err != nil {
			continue
		}

		s.mu.Lock()
		tracked, ok := s.files[id]
		s.mu.Unlock()
		if ok {
			if !tracked.SpooledAt.Before(cutoff) {
				continue
			}
		} else {
			fi, err := entry.Info()
			if err != nil || !fi.ModTime().Before(cutoff) {
				continue
			}
		}

		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		removed++

		s.mu.Lock()
		delete(s.files, id)
		s.mu.Unlock()
	}

	return removed, errors.Join(errs...)
}

// safeExt returns the lowercased extension of name, dropped when it contains
// anything but letters and digits.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
