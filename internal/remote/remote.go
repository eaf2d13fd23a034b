package remote

import (
	"context"
	"io"

	"github.com/amiezra1/mrg/internal/domain"
)

// Upload carries the content of a file being uploaded
type Upload struct {
	// Name is the file name as it should appear in the folder
	Name string

	// Size is the content length in bytes, or -1 when unknown
	Size int64

	// Content is read exactly once during the upload
	Content io.Reader
}

// Storage defines the interface to the remote document-library backend.
// Every call may fail; callers must tolerate total remote outage.
// Implementations return domain-level errors for consistent handling:
// domain.ErrRemoteUnavailable for network/service failures and
// domain.ErrNotFound for missing targets.
type Storage interface {
	// ListRootFolders returns the folders directly under the configured
	// library root. Entries have an empty ParentID.
	ListRootFolders(ctx context.Context) ([]domain.Entry, error)

	// ListChildren returns the files and folders inside the given folder
	ListChildren(ctx context.Context, folderID string) ([]domain.Entry, error)

	// CreateFolder creates a folder and returns its remote identifier
	CreateFolder(ctx context.Context, parentID, name string) (string, error)

	// UploadFile stores the upload inside the given folder and returns
	// the resulting file entry
	UploadFile(ctx context.Context, folderID string, up Upload) (domain.Entry, error)

	// DeleteItem removes a file or folder by identifier
	DeleteItem(ctx context.Context, id string, kind domain.EntryKind) error

	// RenameItem changes the display name of a file or folder
	RenameItem(ctx context.Context, id, newName string) error

	// Close releases any resources held by the backend client
	Close() error
}
