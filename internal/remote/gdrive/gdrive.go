package gdrive

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/amiezra1/mrg/internal/domain"
	"github.com/amiezra1/mrg/internal/remote"
)

const (
	// MimeTypeFolder is the MIME type Drive uses for folders
	MimeTypeFolder = "application/vnd.google-apps.folder"
	// PageSize is the number of entries to fetch per list request
	PageSize = 100
	// entryFields are the file attributes requested on every call
	entryFields = "id, name, mimeType, size, createdTime"
)

// Storage implements remote.Storage over the Google Drive v3 API.
// All operations are keyed by Drive file IDs; only the library root is
// resolved by path, once, at construction.
type Storage struct {
	service *drive.Service
	root    string // library root path, e.g. "/mrg/data"
	rootID  string // resolved Drive ID of the library root
}

// New creates a Drive-backed storage rooted at the given library path.
// The root folder is created if it does not exist yet.
func New(ctx context.Context, clientID, clientSecret, tokenPath, root string) (*Storage, error) {
	auth := NewAuthenticator(clientID, clientSecret, tokenPath)

	token, err := auth.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	return NewWithToken(ctx, token, auth.Config(), root)
}

// NewWithToken creates a Drive-backed storage with an existing token
func NewWithToken(ctx context.Context, token *oauth2.Token, oauthConfig *oauth2.Config, root string) (*Storage, error) {
	client := oauthConfig.Client(ctx, token)

	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	s := &Storage{
		service: service,
		root:    normalizeRoot(root),
	}

	rootID, err := s.resolveOrCreateRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library root: %w", err)
	}
	s.rootID = rootID

	return s, nil
}

// normalizeRoot normalizes the library root path
func normalizeRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" || root == "/" {
		return ""
	}
	if !strings.HasPrefix(root, "/") {
		root = "/" + root
	}
	return strings.TrimSuffix(root, "/")
}

// resolveOrCreateRoot walks the library root path segment by segment,
// creating missing folders along the way
func (s *Storage) resolveOrCreateRoot(ctx context.Context) (string, error) {
	currentID := "root"
	if s.root == "" {
		return currentID, nil
	}

	for _, segment := range strings.Split(strings.TrimPrefix(s.root, "/"), "/") {
		query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
			escapeQueryString(segment), currentID, MimeTypeFolder)
		list, err := s.service.Files.List().Q(query).PageSize(1).Fields("files(id)").Context(ctx).Do()
		if err != nil {
			return "", mapError(err)
		}

		if len(list.Files) > 0 {
			currentID = list.Files[0].Id
			continue
		}

		created, err := s.service.Files.Create(&drive.File{
			Name:     segment,
			MimeType: MimeTypeFolder,
			Parents:  []string{currentID},
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", mapError(err)
		}
		currentID = created.Id
	}

	return currentID, nil
}

// ListRootFolders returns the folders directly under the library root
func (s *Storage) ListRootFolders(ctx context.Context) ([]domain.Entry, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", s.rootID, MimeTypeFolder)

	files, err := s.listAll(ctx, query)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(files))
	for _, f := range files {
		if hiddenName(f.Name) {
			continue
		}
		entries = append(entries, s.entryFromFile("", f))
	}
	return entries, nil
}

// ListChildren returns the files and folders inside the given folder
func (s *Storage) ListChildren(ctx context.Context, folderID string) ([]domain.Entry, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)

	files, err := s.listAll(ctx, query)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(files))
	for _, f := range files {
		if hiddenName(f.Name) {
			continue
		}
		entries = append(entries, s.entryFromFile(folderID, f))
	}
	return entries, nil
}

// listAll pages through a Drive query until exhausted
func (s *Storage) listAll(ctx context.Context, query string) ([]*drive.File, error) {
	var files []*drive.File
	pageToken := ""
	for {
		call := s.service.Files.List().Q(query).
			PageSize(PageSize).
			Fields(googleapi.Field(fmt.Sprintf("nextPageToken, files(%s)", entryFields))).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, mapError(err)
		}
		files = append(files, list.Files...)
		if list.NextPageToken == "" {
			return files, nil
		}
		pageToken = list.NextPageToken
	}
}

// CreateFolder creates a folder and returns its Drive ID
func (s *Storage) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	created, err := s.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: MimeTypeFolder,
		Parents:  []string{parentID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", mapError(err)
	}
	return created.Id, nil
}

// UploadFile stores the upload inside the given folder
func (s *Storage) UploadFile(ctx context.Context, folderID string, up remote.Upload) (domain.Entry, error) {
	created, err := s.service.Files.Create(&drive.File{
		Name:    up.Name,
		Parents: []string{folderID},
	}).Media(up.Content).Fields(entryFields).Context(ctx).Do()
	if err != nil {
		return domain.Entry{}, mapError(err)
	}
	return s.entryFromFile(folderID, created), nil
}

// DeleteItem removes a file or folder by Drive ID. Drive deletes folder
// contents along with the folder, so kind needs no special handling.
func (s *Storage) DeleteItem(ctx context.Context, id string, kind domain.EntryKind) error {
	if err := s.service.Files.Delete(id).Context(ctx).Do(); err != nil {
		return mapError(err)
	}
	return nil
}

// RenameItem changes the display name of a file or folder
func (s *Storage) RenameItem(ctx context.Context, id, newName string) error {
	_, err := s.service.Files.Update(id, &drive.File{Name: newName}).Fields("id").Context(ctx).Do()
	if err != nil {
		return mapError(err)
	}
	return nil
}

// Close releases resources held by the client
func (s *Storage) Close() error {
	return nil
}

// Root returns the configured library root path
func (s *Storage) Root() string {
	return s.root
}

// hiddenName reports whether the library hides this entry name
func hiddenName(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// entryFromFile converts a Drive file to a domain entry
func (s *Storage) entryFromFile(parentID string, f *drive.File) domain.Entry {
	kind := domain.KindFile
	if f.MimeType == MimeTypeFolder {
		kind = domain.KindFolder
	}

	createdAt := time.Time{}
	if f.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, f.CreatedTime)
	}

	entry := domain.Entry{
		ID:        f.Id,
		Name:      f.Name,
		Kind:      kind,
		ParentID:  parentID,
		CreatedAt: createdAt,
	}
	if kind == domain.KindFile {
		entry.SizeLabel = domain.FormatSizeLabel(f.Size)
	}
	return entry
}

// escapeQueryString escapes single quotes and backslashes for Drive queries
func escapeQueryString(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}

// mapError converts Drive API errors to domain errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 404:
			return domain.ErrNotFound
		case apiErr.Code == 403:
			return domain.ErrPermissionDenied
		case apiErr.Code == 409:
			return domain.ErrAlreadyExists
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}

	// Fallback to string matching for non-googleapi errors
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "notFound"):
		return domain.ErrNotFound
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"):
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}

	return err
}

// Compile-time interface check
var _ remote.Storage = (*Storage)(nil)
