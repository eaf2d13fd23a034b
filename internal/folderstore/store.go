// Package folderstore owns the in-memory folder tree and mediates all reads
// and writes between the remote backend, the local snapshot, and callers.
// Mutations follow "optimistic local apply, best-effort remote, always
// persist local": availability wins over strict remote consistency.
package folderstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amiezra1/mrg/internal/domain"
	"github.com/amiezra1/mrg/internal/events"
	"github.com/amiezra1/mrg/internal/logger"
	"github.com/amiezra1/mrg/internal/remote"
)

// RootFolderTarget is the fixed number of root folders presented to
// consumers. Remote results are padded with virtual placeholders up to this
// count and truncated down to it.
const RootFolderTarget = 9

// TreeStore persists the folder tree between runs
type TreeStore interface {
	LoadTree() (domain.FolderTree, error)
	SaveTree(tree domain.FolderTree) error
}

// RootDecoration overrides the display name and appearance of one root slot
type RootDecoration struct {
	Name       string
	Appearance domain.Appearance
}

// FolderInfo is the synchronous lookup result used for breadcrumb and
// background rendering
type FolderInfo struct {
	Name       string
	Appearance domain.Appearance
}

// Options configures a Store. Zero values get sane defaults.
type Options struct {
	// Remote is the document-library backend; nil means permanently offline
	Remote remote.Storage

	// Snapshots persists the tree; nil disables persistence
	Snapshots TreeStore

	// Bus receives mutation events; nil disables notification
	Bus *events.Broadcaster

	// Decorations overrides root slots 1..RootFolderTarget
	Decorations map[int]RootDecoration

	// Logger defaults to the global logger
	Logger logger.Logger
}

// Store is the folder tree orchestrator. The in-memory tree is the single
// source of truth presented to consumers; the remote is reconciled
// best-effort. Permission checks happen at the caller boundary, not here.
type Store struct {
	mu    sync.RWMutex // guards tree and locks
	tree  domain.FolderTree
	locks map[string]*sync.Mutex // per-folder critical sections

	remote      remote.Storage
	snapshots   TreeStore
	bus         *events.Broadcaster
	decorations map[int]RootDecoration
	log         logger.Logger
}

// NewStore constructs a folder store. Call Initialize before use.
func NewStore(opts Options) *Store {
	if opts.Remote == nil {
		opts.Remote = remote.NewUnavailable()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	return &Store{
		tree:        domain.NewFolderTree(),
		locks:       make(map[string]*sync.Mutex),
		remote:      opts.Remote,
		snapshots:   opts.Snapshots,
		bus:         opts.Bus,
		decorations: opts.Decorations,
		log:         opts.Logger,
	}
}

// Initialize populates the tree from the snapshot store if present, else
// bootstraps it from the remote, padding the root set with virtual folders
// up to RootFolderTarget. It never fails: on total remote outage the full
// placeholder set is synthesized so consumers never see an empty tree.
func (s *Store) Initialize(ctx context.Context) {
	if s.snapshots != nil {
		saved, err := s.snapshots.LoadTree()
		if err != nil {
			s.log.Warn("failed to load snapshot, bootstrapping from remote", "error", err)
		} else if saved != nil {
			if _, ok := saved[domain.RootID]; !ok {
				saved[domain.RootID] = []domain.Entry{}
			}
			s.mu.Lock()
			s.tree = saved
			s.mu.Unlock()
			s.log.Info("tree loaded from snapshot", "folders", len(saved))
			return
		}
	}

	roots, err := s.remote.ListRootFolders(ctx)
	if err != nil {
		s.log.Warn("failed to list root folders, synthesizing placeholder set", "error", err)
		roots = nil
	}

	roots = s.decorateRoots(roots)

	tree := domain.FolderTree{domain.RootID: roots}
	for _, folder := range roots {
		tree[folder.ID] = []domain.Entry{}
	}

	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()

	s.persist()
	s.log.Info("tree bootstrapped", "rootFolders", len(roots))
}

// decorateRoots applies per-slot decorations, pads with virtual placeholders
// up to RootFolderTarget, and truncates past it
func (s *Store) decorateRoots(roots []domain.Entry) []domain.Entry {
	if len(roots) > RootFolderTarget {
		roots = roots[:RootFolderTarget]
	}

	decorated := make([]domain.Entry, 0, RootFolderTarget)
	for i, folder := range roots {
		slot := i + 1
		deco := s.decoration(slot)
		folder.Name = deco.Name
		folder.ParentID = ""
		appearance := deco.Appearance
		folder.Appearance = &appearance
		decorated = append(decorated, folder)
	}

	for slot := len(decorated) + 1; slot <= RootFolderTarget; slot++ {
		decorated = append(decorated, s.virtualRoot(slot))
	}

	return decorated
}

// decoration returns the configured decoration for a root slot, or defaults
func (s *Store) decoration(slot int) RootDecoration {
	if deco, ok := s.decorations[slot]; ok {
		if deco.Name == "" {
			deco.Name = defaultRootName(slot)
		}
		if deco.Appearance == (domain.Appearance{}) {
			deco.Appearance = domain.DefaultAppearance()
		}
		return deco
	}
	return RootDecoration{
		Name:       defaultRootName(slot),
		Appearance: domain.DefaultAppearance(),
	}
}

func defaultRootName(slot int) string {
	return fmt.Sprintf("Main Folder %d", slot)
}

// virtualRoot synthesizes the placeholder folder for a root slot
func (s *Store) virtualRoot(slot int) domain.Entry {
	deco := s.decoration(slot)
	appearance := deco.Appearance
	return domain.Entry{
		ID:         fmt.Sprintf("folder-%d", slot),
		Name:       deco.Name,
		Kind:       domain.KindFolder,
		CreatedAt:  time.Now(),
		IsVirtual:  true,
		Appearance: &appearance,
	}
}

// RootFolders returns the cached root sequence
func (s *Store) RootFolders() []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSeq(s.tree[domain.RootID])
}

// Tree returns a deep copy of the current tree
func (s *Store) Tree() domain.FolderTree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Clone()
}

// ListChildren returns the cached sequence for folderID if already
// materialized, even when empty; otherwise it fetches from the remote,
// caches, persists, and returns. A failed fetch resolves to an empty
// sequence; the failure is logged, never propagated.
func (s *Store) ListChildren(ctx context.Context, folderID string) []domain.Entry {
	s.mu.RLock()
	if seq, ok := s.tree[folderID]; ok {
		defer s.mu.RUnlock()
		return cloneSeq(seq)
	}
	s.mu.RUnlock()

	lock := s.folderLock(folderID)
	lock.Lock()
	defer lock.Unlock()

	// Another fetch may have materialized the sequence meanwhile
	s.mu.RLock()
	if seq, ok := s.tree[folderID]; ok {
		defer s.mu.RUnlock()
		return cloneSeq(seq)
	}
	entry, known := s.tree.FindEntry(folderID)
	s.mu.RUnlock()

	var children []domain.Entry
	if known && entry.IsVirtual {
		children = []domain.Entry{}
	} else {
		fetched, err := s.remote.ListChildren(ctx, folderID)
		if err != nil {
			s.log.Warn("failed to fetch folder contents, caching empty sequence",
				"folderId", folderID, "error", err)
			fetched = nil
		}
		children = fetched
		if children == nil {
			children = []domain.Entry{}
		}
	}

	s.mu.Lock()
	s.tree[folderID] = children
	s.mu.Unlock()

	s.persist()
	return cloneSeq(children)
}

// CreateFolder creates a folder under parentID. The remote call is
// best-effort: on failure a locally-scoped identifier is synthesized and the
// entry is marked LocalOnly. Fails with domain.ErrVirtualTarget when the
// parent is a placeholder.
func (s *Store) CreateFolder(ctx context.Context, parentID, name string) (domain.Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Entry{}, domain.ErrInvalidName
	}

	lock := s.folderLock(parentID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.checkMutableParent(parentID); err != nil {
		return domain.Entry{}, err
	}

	localOnly := false
	id, err := s.remote.CreateFolder(ctx, parentID, name)
	if err != nil {
		s.log.Warn("remote folder creation failed, using local identifier",
			"parentId", parentID, "name", name, "error", err)
		id = "folder-" + uuid.NewString()
		localOnly = true
	}

	entry := domain.Entry{
		ID:        id,
		Name:      name,
		Kind:      domain.KindFolder,
		ParentID:  parentRef(parentID),
		CreatedAt: time.Now(),
		LocalOnly: localOnly,
	}

	s.mu.Lock()
	s.tree[parentID] = append(s.tree[parentID], entry)
	s.tree[entry.ID] = []domain.Entry{}
	s.mu.Unlock()

	s.persist()
	s.publish(events.EventCreate, entry.ID, entry.Name)
	s.log.Info("folder created", "id", entry.ID, "parentId", parentID, "localOnly", localOnly)
	return entry, nil
}

// UploadFile stores a file inside folderID. Symmetric to CreateFolder: on
// remote failure a local entry with a best-effort size label is synthesized.
func (s *Store) UploadFile(ctx context.Context, folderID string, up remote.Upload) (domain.Entry, error) {
	if strings.TrimSpace(up.Name) == "" {
		return domain.Entry{}, domain.ErrInvalidName
	}

	lock := s.folderLock(folderID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.checkMutableParent(folderID); err != nil {
		return domain.Entry{}, err
	}

	entry, err := s.remote.UploadFile(ctx, folderID, up)
	if err != nil {
		s.log.Warn("remote upload failed, keeping local entry",
			"folderId", folderID, "name", up.Name, "error", err)
		entry = domain.Entry{
			ID:        "file-" + uuid.NewString(),
			Name:      up.Name,
			Kind:      domain.KindFile,
			CreatedAt: time.Now(),
			SizeLabel: uploadSizeLabel(up.Size),
			LocalOnly: true,
		}
	}
	entry.ParentID = parentRef(folderID)

	s.mu.Lock()
	s.tree[folderID] = append(s.tree[folderID], entry)
	s.mu.Unlock()

	s.persist()
	s.publish(events.EventUpload, entry.ID, entry.Name)
	s.log.Info("file uploaded", "id", entry.ID, "folderId", folderID, "localOnly", entry.LocalOnly)
	return entry, nil
}

// DeleteItem removes the entry from its parent's sequence. Folder deletion
// purges the entire cached subtree, descendants included. Remote deletion is
// attempted but a failure never blocks the local removal.
func (s *Store) DeleteItem(ctx context.Context, itemID, parentID string, kind domain.EntryKind) error {
	lock := s.folderLock(parentID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	item, found := s.findInParent(parentID, itemID)
	s.mu.RUnlock()
	if !found {
		return domain.ErrNotFound
	}
	if item.IsVirtual {
		return domain.ErrVirtualTarget
	}

	if item.LocalOnly {
		s.log.Debug("skipping remote deletion of local-only entry", "id", itemID)
	} else if err := s.remote.DeleteItem(ctx, itemID, kind); err != nil {
		s.log.Warn("remote deletion failed, removing locally anyway", "id", itemID, "error", err)
	}

	s.mu.Lock()
	s.tree[parentID] = removeByID(s.tree[parentID], itemID)
	if kind == domain.KindFolder {
		s.purgeSubtreeLocked(itemID)
	}
	s.mu.Unlock()

	s.persist()
	s.publish(events.EventDelete, itemID, item.Name)
	s.log.Info("item deleted", "id", itemID, "parentId", parentID, "kind", kind.String())
	return nil
}

// purgeSubtreeLocked discards the cached sequences of a folder and every
// descendant folder reachable from it; callers hold s.mu
func (s *Store) purgeSubtreeLocked(folderID string) {
	children := s.tree[folderID]
	delete(s.tree, folderID)
	for _, child := range children {
		if child.IsFolder() {
			s.purgeSubtreeLocked(child.ID)
		}
	}
}

// RenameItem rewrites the name of the matching entry in the parent's
// sequence. A rename to the current name is a no-op and issues no remote
// call. Remote rename is best-effort, mirroring delete.
func (s *Store) RenameItem(ctx context.Context, itemID, parentID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return domain.ErrInvalidName
	}

	lock := s.folderLock(parentID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	item, found := s.findInParent(parentID, itemID)
	s.mu.RUnlock()
	if !found {
		return domain.ErrNotFound
	}
	if item.IsVirtual {
		return domain.ErrVirtualTarget
	}
	if item.Name == newName {
		return nil
	}

	if item.LocalOnly {
		s.log.Debug("skipping remote rename of local-only entry", "id", itemID)
	} else if err := s.remote.RenameItem(ctx, itemID, newName); err != nil {
		s.log.Warn("remote rename failed, renaming locally anyway", "id", itemID, "error", err)
	}

	s.mu.Lock()
	seq := s.tree[parentID]
	for i := range seq {
		if seq[i].ID == itemID {
			seq[i].Name = newName
			break
		}
	}
	s.mu.Unlock()

	s.persist()
	s.publish(events.EventRename, itemID, newName)
	s.log.Info("item renamed", "id", itemID, "newName", newName)
	return nil
}

// GetFolderInfo is a pure lookup for breadcrumb and background rendering.
// Synchronous and side-effect free; unresolvable IDs fall back to defaults
// with the ID as the name.
func (s *Store) GetFolderInfo(folderID string) FolderInfo {
	if folderID == "" || folderID == domain.RootID {
		return FolderInfo{Appearance: domain.DefaultAppearance()}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.tree.FindEntry(folderID); ok && entry.IsFolder() {
		info := FolderInfo{Name: entry.Name, Appearance: domain.DefaultAppearance()}
		if entry.Appearance != nil {
			info.Appearance = *entry.Appearance
		}
		return info
	}

	return FolderInfo{Name: folderID, Appearance: domain.DefaultAppearance()}
}

// checkMutableParent rejects mutations whose target folder is virtual
func (s *Store) checkMutableParent(parentID string) error {
	if parentID == domain.RootID {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.tree.FindEntry(parentID); ok && entry.IsVirtual {
		return domain.ErrVirtualTarget
	}
	return nil
}

// findInParent locates an entry in its parent's sequence; callers hold s.mu
func (s *Store) findInParent(parentID, itemID string) (domain.Entry, bool) {
	for _, e := range s.tree[parentID] {
		if e.ID == itemID {
			return e, true
		}
	}
	return domain.Entry{}, false
}

// folderLock returns the critical-section mutex for one folder, creating it
// on first use. Holding it serializes read-modify-write of that folder's
// sequence without blocking operations on unrelated folders.
func (s *Store) folderLock(folderID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[folderID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[folderID] = lock
	}
	return lock
}

// persist saves the current tree to the snapshot store. Save failures are
// logged, never propagated: the in-memory tree stays authoritative.
func (s *Store) persist() {
	if s.snapshots == nil {
		return
	}

	s.mu.RLock()
	clone := s.tree.Clone()
	s.mu.RUnlock()

	if err := s.snapshots.SaveTree(clone); err != nil {
		s.log.Warn("failed to persist tree snapshot", "error", err)
	}
}

func (s *Store) publish(eventType, itemID, name string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: eventType, ItemID: itemID, Name: name})
}

// parentRef converts the root sentinel key to the empty parent reference
// carried by root-level entries
func parentRef(parentID string) string {
	if parentID == domain.RootID {
		return ""
	}
	return parentID
}

func cloneSeq(seq []domain.Entry) []domain.Entry {
	out := make([]domain.Entry, len(seq))
	copy(out, seq)
	return out
}

func removeByID(seq []domain.Entry, id string) []domain.Entry {
	out := seq[:0]
	for _, e := range seq {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func uploadSizeLabel(size int64) string {
	if size < 0 {
		return "Unknown"
	}
	return domain.FormatSizeLabel(size)
}
