// Package localfs serves the document library from a directory on disk.
// It backs single-machine deployments and tests that need a real, writable
// backend without any cloud credentials.
package localfs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amiezra1/mrg/internal/domain"
	"github.com/amiezra1/mrg/internal/remote"
)

// Storage implements remote.Storage over a local directory tree.
// Item identifiers are slash-normalized paths relative to the root.
type Storage struct {
	root string
}

// New creates a storage rooted at the given directory, which must exist
func New(root string) (*Storage, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, domain.ErrInvalidName
	}

	return &Storage{root: absRoot}, nil
}

// resolve maps an item identifier to an absolute path, rejecting anything
// that would escape the root directory
func (s *Storage) resolve(id string) (string, error) {
	if id == "" || id == "." {
		return s.root, nil
	}

	id = filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(id) {
		return "", domain.ErrPermissionDenied
	}

	full := filepath.Join(s.root, id)
	rel, err := filepath.Rel(s.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", domain.ErrPermissionDenied
	}

	return full, nil
}

// ListRootFolders returns the directories directly under the root
func (s *Storage) ListRootFolders(ctx context.Context) ([]domain.Entry, error) {
	return s.list(ctx, "", true)
}

// ListChildren returns the files and folders inside the given folder
func (s *Storage) ListChildren(ctx context.Context, folderID string) ([]domain.Entry, error) {
	return s.list(ctx, folderID, false)
}

func (s *Storage) list(ctx context.Context, folderID string, foldersOnly bool) ([]domain.Entry, error) {
	full, err := s.resolve(folderID)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return nil, mapError(err)
	}

	entries := make([]domain.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if hiddenName(de.Name()) {
			continue
		}
		if foldersOnly && !de.IsDir() {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue // entry vanished or is unreadable, skip it
		}

		entries = append(entries, s.entryFromInfo(folderID, info))
	}

	return entries, nil
}

// CreateFolder creates a directory and returns its path identifier
func (s *Storage) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return "", domain.ErrInvalidName
	}

	id := childID(parentID, name)
	full, err := s.resolve(id)
	if err != nil {
		return "", err
	}

	if err := os.Mkdir(full, 0755); err != nil {
		return "", mapError(err)
	}
	return id, nil
}

// UploadFile writes the upload into the given folder atomically
func (s *Storage) UploadFile(ctx context.Context, folderID string, up remote.Upload) (domain.Entry, error) {
	if strings.ContainsAny(up.Name, `/\`) {
		return domain.Entry{}, domain.ErrInvalidName
	}

	id := childID(folderID, up.Name)
	full, err := s.resolve(id)
	if err != nil {
		return domain.Entry{}, err
	}

	// Write to a temp file first so readers never see partial content
	tempPath := full + ".mrg.tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return domain.Entry{}, mapError(err)
	}

	_, copyErr := io.Copy(file, up.Content)
	closeErr := file.Close()
	if copyErr != nil {
		os.Remove(tempPath)
		return domain.Entry{}, copyErr
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return domain.Entry{}, closeErr
	}

	if err := os.Rename(tempPath, full); err != nil {
		os.Remove(tempPath)
		return domain.Entry{}, mapError(err)
	}

	info, err := os.Stat(full)
	if err != nil {
		return domain.Entry{}, mapError(err)
	}

	return s.entryFromInfo(folderID, info), nil
}

// DeleteItem removes a file or a directory tree
func (s *Storage) DeleteItem(ctx context.Context, id string, kind domain.EntryKind) error {
	full, err := s.resolve(id)
	if err != nil {
		return err
	}
	if full == s.root {
		return domain.ErrPermissionDenied
	}

	if _, err := os.Stat(full); err != nil {
		return mapError(err)
	}

	if kind == domain.KindFolder {
		return mapError(os.RemoveAll(full))
	}
	return mapError(os.Remove(full))
}

// RenameItem renames a file or folder in place. The identifier of a renamed
// item changes because identifiers are paths; callers that keep their own
// identifiers (as the folder store does) are unaffected.
func (s *Storage) RenameItem(ctx context.Context, id, newName string) error {
	if strings.ContainsAny(newName, `/\`) {
		return domain.ErrInvalidName
	}

	full, err := s.resolve(id)
	if err != nil {
		return err
	}
	if full == s.root {
		return domain.ErrPermissionDenied
	}

	if _, err := os.Stat(full); err != nil {
		return mapError(err)
	}

	target := filepath.Join(filepath.Dir(full), newName)
	return mapError(os.Rename(full, target))
}

// Close releases resources; a no-op for the filesystem backend
func (s *Storage) Close() error { return nil }

// entryFromInfo converts os.FileInfo into a tree entry
func (s *Storage) entryFromInfo(parentID string, info os.FileInfo) domain.Entry {
	kind := domain.KindFile
	if info.IsDir() {
		kind = domain.KindFolder
	}

	entry := domain.Entry{
		ID:        childID(parentID, info.Name()),
		Name:      info.Name(),
		Kind:      kind,
		ParentID:  parentID,
		CreatedAt: info.ModTime(),
	}
	if kind == domain.KindFile {
		entry.SizeLabel = domain.FormatSizeLabel(info.Size())
	}
	return entry
}

// childID builds the slash-normalized identifier of a child item
func childID(parentID, name string) string {
	if parentID == "" {
		return name
	}
	return parentID + "/" + name
}

func hiddenName(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// mapError converts OS errors to domain errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return domain.ErrNotFound
	}
	if os.IsPermission(err) {
		return domain.ErrPermissionDenied
	}
	if os.IsExist(err) {
		return domain.ErrAlreadyExists
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && strings.Contains(pathErr.Err.Error(), "not empty") {
		return domain.ErrAlreadyExists
	}

	return err
}

// Compile-time interface check
var _ remote.Storage = (*Storage)(nil)
