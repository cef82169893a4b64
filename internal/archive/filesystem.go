package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"draftmark/internal/review"
)

// FileSystemArchive stores one file per snapshot:
//
//	<root>/
//	  <version id, path escaped>/
//	    <revision>.json       (plaintext)
//	    <revision>.json.age   (sealed)
type FileSystemArchive struct {
	root  string
	codec *Codec
}

// NewFileSystemArchive creates the archive root if needed.
func NewFileSystemArchive(root string, codec *Codec) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileSystemArchive{root: root, codec: codec}, nil
}

func (a *FileSystemArchive) path(versionID string, revision int) string {
	return filepath.Join(a.root, versionDir(versionID), a.codec.objectName(revision))
}

// Put writes the snapshot atomically, replacing any previous file.
func (a *FileSystemArchive) Put(_ context.Context, s *review.Snapshot) error {
	data, err := a.codec.Encode(s)
	if err != nil {
		return err
	}

	dir := filepath.Join(a.root, versionDir(s.VersionID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create version directory: %w", err)
	}
	return writeFile(a.path(s.VersionID, s.RevisionNumber), data)
}

func (a *FileSystemArchive) Get(_ context.Context, versionID string, revision int) (*review.Snapshot, error) {
	data, err := os.ReadFile(a.path(versionID, revision))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return a.codec.Decode(data)
}

func (a *FileSystemArchive) List(ctx context.Context, versionID string) ([]*review.Snapshot, error) {
	entries, err := os.ReadDir(filepath.Join(a.root, versionDir(versionID)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var out []*review.Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rev, ok := a.codec.parseRevision(e.Name())
		if !ok {
			continue
		}
		s, err := a.Get(ctx, versionID, rev)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// ValidateSetup verifies that the archive root is an accessible directory.
func (a *FileSystemArchive) ValidateSetup() error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}
	return nil
}

// writeFile writes data to destPath using a temp file and rename.
func writeFile(destPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemArchive implements review.ArchiveBackend
var _ review.ArchiveBackend = (*FileSystemArchive)(nil)
