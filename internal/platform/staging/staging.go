// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package staging manages the local transient area where uploaded pages wait
between network receipt and content-store upload.

Every staged file must be released on every exit path. Callers acquire files
with [Area.Stage] and release them with [File.Remove] or [Sweep]; both are
idempotent, so a deferred sweep after per-file removal is always safe.
*/
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/taibuivan/koma/pkg/slug"
	"github.com/taibuivan/koma/pkg/uuid"
)

// Area is a directory holding staged page files.
type Area struct {
	dir string
}

// File is one staged page.
type File struct {
	// Name is the display name supplied by the uploader.
	Name string
	// Path is the absolute location of the staged bytes.
	Path string
	// ContentType is sniffed from the staged bytes.
	ContentType string
	// Size is the number of staged bytes.
	Size int64
}

// New creates the staging directory when missing.
func New(dir string) (*Area, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("staging: failed to create directory %s: %w", dir, err)
	}
	return &Area{dir: dir}, nil
}

// Dir returns the staging directory.
func (area *Area) Dir() string {
	return area.dir
}

/*
Stage copies content into a new staged file.

Description: The file is written under a unique name derived from the display
name, synced, and its content type is sniffed. On any failure the partial
file is removed before returning.

Parameters:
  - name: string (Display name, e.g. "001.png")
  - content: io.Reader

Returns:
  - *File: The staged file handle
  - error: Filesystem failures
*/
func (area *Area) Stage(name string, content io.Reader) (*File, error) {
	path := filepath.Join(area.dir, stagedName(name))

	handle, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("staging: failed to create %s: %w", path, err)
	}

	size, err := io.Copy(handle, content)
	if err == nil {
		err = handle.Sync()
	}
	if closeErr := handle.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("staging: failed to write %s: %w", path, err)
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("staging: failed to detect content type of %s: %w", path, err)
	}

	return &File{
		Name:        name,
		Path:        path,
		ContentType: detected.String(),
		Size:        size,
	}, nil
}

// Open returns a reader over the staged bytes. The caller closes it.
func (file *File) Open() (io.ReadCloser, error) {
	handle, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("staging: failed to open %s: %w", file.Path, err)
	}
	return handle, nil
}

// Remove deletes the staged bytes. Removing an already removed file is not an error.
func (file *File) Remove() error {
	if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("staging: failed to remove %s: %w", file.Path, err)
	}
	return nil
}

// Sweep removes every given file, best effort, and returns the number of
// files that could not be removed.
func Sweep(files []*File) int {
	failed := 0
	for _, file := range files {
		if file == nil {
			continue
		}
		if err := file.Remove(); err != nil {
			failed++
		}
	}
	return failed
}

/*
PurgeStale removes staged files last written before olderThan ago.

Description: Files left behind by a process that died mid-upload are never
swept by their request. Any file older than the longest upload deadline can
no longer belong to a live request. Subdirectories are left alone.

Returns:
  - int: Number of files removed
  - error: The first listing or removal failure
*/
func (area *Area) PurgeStale(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(area.dir)
	if err != nil {
		return 0, fmt.Errorf("staging: failed to list %s: %w", area.dir, err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var firstErr error

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		stale := &File{Path: filepath.Join(area.dir, entry.Name())}
		if err := stale.Remove(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}

	return removed, firstErr
}

// stagedName builds a collision-free, filesystem-safe name keeping the extension.
func stagedName(name string) string {
	extension := strings.ToLower(filepath.Ext(name))
	if len(extension) > 10 || strings.ContainsAny(extension, `/\`) {
		extension = ""
	}

	base := slug.From(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)), 48)
	if base == "" {
		base = "page"
	}

	return base + "-" + uuid.New() + extension
}
