package remote

import (
	"context"

	"github.com/amiezra1/mrg/internal/domain"
)

// Unavailable is a Storage implementation whose every call fails with
// domain.ErrRemoteUnavailable. It backs offline operation: the folder store
// degrades to snapshot data and local-only identifiers.
type Unavailable struct{}

// NewUnavailable returns a Storage that is permanently offline
func NewUnavailable() *Unavailable {
	return &Unavailable{}
}

func (u *Unavailable) ListRootFolders(ctx context.Context) ([]domain.Entry, error) {
	return nil, domain.ErrRemoteUnavailable
}

func (u *Unavailable) ListChildren(ctx context.Context, folderID string) ([]domain.Entry, error) {
	return nil, domain.ErrRemoteUnavailable
}

func (u *Unavailable) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	return "", domain.ErrRemoteUnavailable
}

func (u *Unavailable) UploadFile(ctx context.Context, folderID string, up Upload) (domain.Entry, error) {
	return domain.Entry{}, domain.ErrRemoteUnavailable
}

func (u *Unavailable) DeleteItem(ctx context.Context, id string, kind domain.EntryKind) error {
	return domain.ErrRemoteUnavailable
}

func (u *Unavailable) RenameItem(ctx context.Context, id, newName string) error {
	return domain.ErrRemoteUnavailable
}

func (u *Unavailable) Close() error { return nil }

// Compile-time interface check
var _ Storage = (*Unavailable)(nil)
