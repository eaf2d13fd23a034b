package folderstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiezra1/mrg/internal/domain"
	"github.com/amiezra1/mrg/internal/events"
	"github.com/amiezra1/mrg/internal/remote"
)

// fakeRemote is an in-memory remote.Storage with switchable failure mode and
// per-operation call counters.
type fakeRemote struct {
	mu       sync.Mutex
	fail     bool
	roots    []domain.Entry
	children map[string][]domain.Entry
	nextID   int

	listRootCalls int
	listCalls     int
	createCalls   int
	uploadCalls   int
	deleteCalls   int
	renameCalls   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{children: make(map[string][]domain.Entry)}
}

func (f *fakeRemote) ListRootFolders(ctx context.Context) ([]domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listRootCalls++
	if f.fail {
		return nil, domain.ErrRemoteUnavailable
	}
	return f.roots, nil
}

func (f *fakeRemote) ListChildren(ctx context.Context, folderID string) ([]domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.fail {
		return nil, domain.ErrRemoteUnavailable
	}
	return f.children[folderID], nil
}

func (f *fakeRemote) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.fail {
		return "", domain.ErrRemoteUnavailable
	}
	f.nextID++
	return fmt.Sprintf("remote-folder-%d", f.nextID), nil
}

func (f *fakeRemote) UploadFile(ctx context.Context, folderID string, up remote.Upload) (domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	if f.fail {
		return domain.Entry{}, domain.ErrRemoteUnavailable
	}
	f.nextID++
	return domain.Entry{
		ID:        fmt.Sprintf("remote-file-%d", f.nextID),
		Name:      up.Name,
		Kind:      domain.KindFile,
		SizeLabel: domain.FormatSizeLabel(up.Size),
	}, nil
}

func (f *fakeRemote) DeleteItem(ctx context.Context, id string, kind domain.EntryKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.fail {
		return domain.ErrRemoteUnavailable
	}
	return nil
}

func (f *fakeRemote) RenameItem(ctx context.Context, id, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renameCalls++
	if f.fail {
		return domain.ErrRemoteUnavailable
	}
	return nil
}

func (f *fakeRemote) Close() error { return nil }

var _ remote.Storage = (*fakeRemote)(nil)

// memTreeStore keeps the last saved tree in memory
type memTreeStore struct {
	mu        sync.Mutex
	saved     domain.FolderTree
	saveCalls int
	failSave  bool
}

func (m *memTreeStore) LoadTree() (domain.FolderTree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, nil
}

func (m *memTreeStore) SaveTree(tree domain.FolderTree) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.failSave {
		return fmt.Errorf("disk full")
	}
	m.saved = tree
	return nil
}

func (m *memTreeStore) lastSaved() domain.FolderTree {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

func folder(id, name, parentID string) domain.Entry {
	return domain.Entry{ID: id, Name: name, Kind: domain.KindFolder, ParentID: parentID}
}

func file(id, name, parentID string) domain.Entry {
	return domain.Entry{ID: id, Name: name, Kind: domain.KindFile, ParentID: parentID}
}

func TestInitializeSynthesizesPlaceholdersOnTotalOutage(t *testing.T) {
	store := NewStore(Options{Remote: remote.NewUnavailable()})
	store.Initialize(context.Background())

	roots := store.RootFolders()
	require.Len(t, roots, RootFolderTarget)
	for i, root := range roots {
		assert.True(t, root.IsVirtual, "root %d should be virtual", i)
		assert.True(t, root.IsFolder())
		assert.Equal(t, fmt.Sprintf("folder-%d", i+1), root.ID)
		assert.Equal(t, fmt.Sprintf("Main Folder %d", i+1), root.Name)
	}
}

func TestInitializePadsRemoteRootsToTarget(t *testing.T) {
	rem := newFakeRemote()
	rem.roots = []domain.Entry{
		folder("r1", "Alpha", ""),
		folder("r2", "Beta", ""),
		folder("r3", "Gamma", ""),
	}

	store := NewStore(Options{Remote: rem})
	store.Initialize(context.Background())

	roots := store.RootFolders()
	require.Len(t, roots, RootFolderTarget)

	for i := 0; i < 3; i++ {
		assert.False(t, roots[i].IsVirtual, "remote-backed root %d must not be virtual", i)
		assert.Equal(t, rem.roots[i].ID, roots[i].ID)
	}
	for i := 3; i < RootFolderTarget; i++ {
		assert.True(t, roots[i].IsVirtual, "padded root %d must be virtual", i)
	}
}

func TestInitializeTruncatesExcessRemoteRoots(t *testing.T) {
	rem := newFakeRemote()
	for i := 1; i <= 12; i++ {
		rem.roots = append(rem.roots, folder(fmt.Sprintf("r%d", i), fmt.Sprintf("Root %d", i), ""))
	}

	store := NewStore(Options{Remote: rem})
	store.Initialize(context.Background())

	roots := store.RootFolders()
	require.Len(t, roots, RootFolderTarget)
	for _, root := range roots {
		assert.False(t, root.IsVirtual)
	}
}

func TestInitializeAppliesDecorations(t *testing.T) {
	rem := newFakeRemote()
	rem.roots = []domain.Entry{folder("r1", "raw remote name", "")}

	store := NewStore(Options{
		Remote: rem,
		Decorations: map[int]RootDecoration{
			1: {Name: "Projects", Appearance: domain.Appearance{BackgroundImage: "/projects.png", Icon: "/Folder.png"}},
		},
	})
	store.Initialize(context.Background())

	roots := store.RootFolders()
	require.NotEmpty(t, roots)
	assert.Equal(t, "Projects", roots[0].Name)
	require.NotNil(t, roots[0].Appearance)
	assert.Equal(t, "/projects.png", roots[0].Appearance.BackgroundImage)
}

func TestInitializePrefersSnapshot(t *testing.T) {
	snap := &memTreeStore{saved: domain.FolderTree{
		domain.RootID: {folder("r1", "Saved Root", "")},
		"r1":          {file("f1", "readme.txt", "r1")},
	}}
	rem := newFakeRemote()

	store := NewStore(Options{Remote: rem, Snapshots: snap})
	store.Initialize(context.Background())

	roots := store.RootFolders()
	require.Len(t, roots, 1)
	assert.Equal(t, "Saved Root", roots[0].Name)
	assert.Zero(t, rem.listRootCalls, "snapshot hit must not touch the remote")
}

func TestListChildrenCachesRemoteResult(t *testing.T) {
	rem := newFakeRemote()
	rem.children["r1"] = []domain.Entry{file("f1", "a.txt", "r1")}

	store := NewStore(Options{Remote: rem})

	first := store.ListChildren(context.Background(), "r1")
	require.Len(t, first, 1)
	assert.Equal(t, 1, rem.listCalls)

	second := store.ListChildren(context.Background(), "r1")
	require.Len(t, second, 1)
	assert.Equal(t, 1, rem.listCalls, "cached sequence must not trigger a second fetch")
}

func TestListChildrenReturnsCachedEmptySequenceWithoutRefetch(t *testing.T) {
	rem := newFakeRemote()
	store := NewStore(Options{Remote: rem})

	// First call materializes an empty sequence
	require.Empty(t, store.ListChildren(context.Background(), "r1"))
	require.Equal(t, 1, rem.listCalls)

	// A cached empty sequence means "known empty", not "unknown"
	require.Empty(t, store.ListChildren(context.Background(), "r1"))
	assert.Equal(t, 1, rem.listCalls)
}

func TestListChildrenResolvesEmptyOnRemoteFailure(t *testing.T) {
	rem := newFakeRemote()
	rem.fail = true
	snap := &memTreeStore{}

	store := NewStore(Options{Remote: rem, Snapshots: snap})

	children := store.ListChildren(context.Background(), "r1")
	assert.NotNil(t, children)
	assert.Empty(t, children)

	saved := snap.lastSaved()
	require.NotNil(t, saved)
	_, ok := saved["r1"]
	assert.True(t, ok, "failed fetch still materializes and persists the key")
}

func TestListChildrenSkipsRemoteForVirtualFolder(t *testing.T) {
	rem := newFakeRemote()
	rem.fail = true
	store := NewStore(Options{Remote: rem})
	store.Initialize(context.Background())
	rem.mu.Lock()
	rem.listCalls = 0
	rem.mu.Unlock()

	// Initialize materializes every root key, so drop one to force a lookup
	store.mu.Lock()
	delete(store.tree, "folder-1")
	store.mu.Unlock()

	children := store.ListChildren(context.Background(), "folder-1")
	assert.Empty(t, children)
	assert.Zero(t, rem.listCalls, "virtual folders never hit the remote")
}

func TestCreateFolderUsesRemoteIdentifier(t *testing.T) {
	rem := newFakeRemote()
	snap := &memTreeStore{}
	store := NewStore(Options{Remote: rem, Snapshots: snap})

	entry, err := store.CreateFolder(context.Background(), domain.RootID, "Reports")
	require.NoError(t, err)
	assert.Equal(t, "remote-folder-1", entry.ID)
	assert.Equal(t, "Reports", entry.Name)
	assert.Equal(t, "", entry.ParentID, "root-level entries carry an empty parent reference")
	assert.False(t, entry.LocalOnly)

	tree := store.Tree()
	require.Contains(t, tree, entry.ID, "new folders get their own child sequence")
	assert.Empty(t, tree[entry.ID])
	require.NotNil(t, snap.lastSaved())
}

func TestCreateFolderFallsBackToLocalIdentifierOnRemoteFailure(t *testing.T) {
	rem := newFakeRemote()
	rem.fail = true
	store := NewStore(Options{Remote: rem})

	entry, err := store.CreateFolder(context.Background(), domain.RootID, "Offline")
	require.NoError(t, err, "remote failure must not fail the local mutation")
	assert.True(t, entry.LocalOnly)
	assert.True(t, strings.HasPrefix(entry.ID, "folder-"))

	children := store.ListChildren(context.Background(), domain.RootID)
	require.Len(t, children, 1)
	assert.Equal(t, entry.ID, children[0].ID)
}

func TestCreateFolderRejectsEmptyName(t *testing.T) {
	store := NewStore(Options{Remote: newFakeRemote()})

	_, err := store.CreateFolder(context.Background(), domain.RootID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestCreateFolderRejectsVirtualParent(t *testing.T) {
	rem := newFakeRemote()
	rem.fail = true
	store := NewStore(Options{Remote: rem})
	store.Initialize(context.Background())
	before := store.Tree()

	_, err := store.CreateFolder(context.Background(), "folder-1", "nope")
	require.ErrorIs(t, err, domain.ErrVirtualTarget)
	assert.Zero(t, rem.createCalls, "rejection happens before any remote call")
	assert.Equal(t, before, store.Tree(), "failed mutation leaves the tree untouched")
}

func TestUploadFileRemoteSuccess(t *testing.T) {
	rem := newFakeRemote()
	store := NewStore(Options{Remote: rem})
	store.ListChildren(context.Background(), "r1")

	up := remote.Upload{Name: "report.pdf", Size: 2048, Content: strings.NewReader("data")}
	entry, err := store.UploadFile(context.Background(), "r1", up)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", entry.Name)
	assert.Equal(t, "r1", entry.ParentID)
	assert.Equal(t, "2.0 KB", entry.SizeLabel)
	assert.False(t, entry.LocalOnly)

	children := store.ListChildren(context.Background(), "r1")
	require.Len(t, children, 1)
}

func TestUploadFileFallsBackToLocalEntryOnRemoteFailure(t *testing.T) {
	rem := newFakeRemote()
	rem.fail = true
	store := NewStore(Options{Remote: rem})

	up := remote.Upload{Name: "notes.txt", Size: -1, Content: strings.NewReader("x")}
	entry, err := store.UploadFile(context.Background(), "r1", up)
	require.NoError(t, err)
	assert.True(t, entry.LocalOnly)
	assert.True(t, strings.HasPrefix(entry.ID, "file-"))
	assert.Equal(t, "Unknown", entry.SizeLabel)
}

func TestUploadFileRejectsVirtualFolder(t *testing.T) {
	rem := newFakeRemote()
	rem.fail = true
	store := NewStore(Options{Remote: rem})
	store.Initialize(context.Background())

	up := remote.Upload{Name: "x.txt", Size: 1, Content: strings.NewReader("x")}
	_, err := store.UploadFile(context.Background(), "folder-1", up)
	assert.ErrorIs(t, err, domain.ErrVirtualTarget)
	assert.Zero(t, rem.uploadCalls)
}

func TestDeleteItemRemovesEntryAndSucceedsDespiteRemoteFailure(t *testing.T) {
	rem := newFakeRemote()
	rem.children["r1"] = []domain.Entry{file("f1", "a.txt", "r1"), file("f2", "b.txt", "r1")}
	store := NewStore(Options{Remote: rem})
	store.ListChildren(context.Background(), "r1")

	rem.mu.Lock()
	rem.fail = true
	rem.mu.Unlock()

	err := store.DeleteItem(context.Background(), "f1", "r1", domain.KindFile)
	require.NoError(t, err, "remote failure must not block local removal")

	children := store.ListChildren(context.Background(), "r1")
	require.Len(t, children, 1)
	assert.Equal(t, "f2", children[0].ID)
	assert.Equal(t, 1, rem.deleteCalls, "remote deletion is still attempted")
}

func TestDeleteFolderPurgesDescendantSequences(t *testing.T) {
	rem := newFakeRemote()
	store := NewStore(Options{Remote: rem})

	parent, err := store.CreateFolder(context.Background(), domain.RootID, "Parent")
	require.NoError(t, err)
	child, err := store.CreateFolder(context.Background(), parent.ID, "Child")
	require.NoError(t, err)
	_, err = store.UploadFile(context.Background(), child.ID, remote.Upload{Name: "deep.txt", Size: 1, Content: strings.NewReader("x")})
	require.NoError(t, err)

	require.NoError(t, store.DeleteItem(context.Background(), parent.ID, domain.RootID, domain.KindFolder))

	tree := store.Tree()
	assert.NotContains(t, tree, parent.ID, "deleted folder key must be purged")
	assert.NotContains(t, tree, child.ID, "descendant folder keys must be purged too")
	assert.Empty(t, tree[domain.RootID])
}

func TestDeleteFolderContainingFilesRemovesItsSequence(t *testing.T) {
	rem := newFakeRemote()
	store := NewStore(Options{Remote: rem})

	target, err := store.CreateFolder(context.Background(), domain.RootID, "Target")
	require.NoError(t, err)
	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := store.UploadFile(context.Background(), target.ID, remote.Upload{Name: name, Size: 1, Content: strings.NewReader("x")})
		require.NoError(t, err)
	}
	require.Len(t, store.ListChildren(context.Background(), target.ID), 2)

	require.NoError(t, store.DeleteItem(context.Background(), target.ID, domain.RootID, domain.KindFolder))

	assert.Empty(t, store.RootFolders())
	assert.NotContains(t, store.Tree(), target.ID)

	// The files are no longer reachable; a fresh listing re-fetches
	rem.mu.Lock()
	rem.listCalls = 0
	rem.mu.Unlock()
	assert.Empty(t, store.ListChildren(context.Background(), target.ID))
	assert.Equal(t, 1, rem.listCalls)
}

func TestDeleteItemSkipsRemoteForLocalOnlyEntry(t *testing.T) {
	rem := newFakeRemote()
	rem.fail = true
	store := NewStore(Options{Remote: rem})

	entry, err := store.CreateFolder(context.Background(), domain.RootID, "Offline")
	require.NoError(t, err)
	require.True(t, entry.LocalOnly)

	rem.mu.Lock()
	rem.deleteCalls = 0
	rem.mu.Unlock()

	require.NoError(t, store.DeleteItem(context.Background(), entry.ID, domain.RootID, domain.KindFolder))
	assert.Zero(t, rem.deleteCalls, "local-only entries are never deleted remotely")
}

func TestDeleteItemUnknownIDReturnsNotFound(t *testing.T) {
	store := NewStore(Options{Remote: newFakeRemote()})
	err := store.DeleteItem(context.Background(), "ghost", domain.RootID, domain.KindFile)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteItemRejectsVirtualFolder(t *testing.T) {
	rem := newFakeRemote()
	rem.fail = true
	store := NewStore(Options{Remote: rem})
	store.Initialize(context.Background())

	err := store.DeleteItem(context.Background(), "folder-1", domain.RootID, domain.KindFolder)
	assert.ErrorIs(t, err, domain.ErrVirtualTarget)

	roots := store.RootFolders()
	assert.Len(t, roots, RootFolderTarget, "virtual roots survive delete attempts")
}

func TestRenameItemRewritesNameLocally(t *testing.T) {
	rem := newFakeRemote()
	rem.children["r1"] = []domain.Entry{file("f1", "old.txt", "r1")}
	store := NewStore(Options{Remote: rem})
	store.ListChildren(context.Background(), "r1")

	require.NoError(t, store.RenameItem(context.Background(), "f1", "r1", "new.txt"))

	children := store.ListChildren(context.Background(), "r1")
	require.Len(t, children, 1)
	assert.Equal(t, "new.txt", children[0].Name)
	assert.Equal(t, 1, rem.renameCalls)
}

func TestRenameItemToSameNameIsNoOp(t *testing.T) {
	rem := newFakeRemote()
	rem.children["r1"] = []domain.Entry{file("f1", "same.txt", "r1")}
	store := NewStore(Options{Remote: rem})
	store.ListChildren(context.Background(), "r1")

	require.NoError(t, store.RenameItem(context.Background(), "f1", "r1", "same.txt"))
	assert.Zero(t, rem.renameCalls, "no-op rename must not issue a remote call")
}

func TestRenameItemSucceedsDespiteRemoteFailure(t *testing.T) {
	rem := newFakeRemote()
	rem.children["r1"] = []domain.Entry{file("f1", "old.txt", "r1")}
	store := NewStore(Options{Remote: rem})
	store.ListChildren(context.Background(), "r1")

	rem.mu.Lock()
	rem.fail = true
	rem.mu.Unlock()

	require.NoError(t, store.RenameItem(context.Background(), "f1", "r1", "renamed.txt"))

	children := store.ListChildren(context.Background(), "r1")
	assert.Equal(t, "renamed.txt", children[0].Name)
}

func TestRenameItemValidation(t *testing.T) {
	rem := newFakeRemote()
	rem.fail = true
	store := NewStore(Options{Remote: rem})
	store.Initialize(context.Background())

	tests := []struct {
		name     string
		itemID   string
		parentID string
		newName  string
		wantErr  error
	}{
		{"empty name", "folder-1", domain.RootID, "  ", domain.ErrInvalidName},
		{"unknown item", "ghost", domain.RootID, "x", domain.ErrNotFound},
		{"virtual target", "folder-1", domain.RootID, "x", domain.ErrVirtualTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.RenameItem(context.Background(), tt.itemID, tt.parentID, tt.newName)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetFolderInfo(t *testing.T) {
	rem := newFakeRemote()
	rem.roots = []domain.Entry{folder("r1", "ignored", "")}
	store := NewStore(Options{
		Remote: rem,
		Decorations: map[int]RootDecoration{
			1: {Name: "Projects", Appearance: domain.Appearance{BackgroundImage: "/projects.png", Icon: "/Folder.png"}},
		},
	})
	store.Initialize(context.Background())

	tests := []struct {
		name     string
		folderID string
		wantName string
		wantBg   string
	}{
		{"empty id falls back to defaults", "", "", domain.DefaultBackgroundImage},
		{"root sentinel falls back to defaults", domain.RootID, "", domain.DefaultBackgroundImage},
		{"known folder uses its appearance", "r1", "Projects", "/projects.png"},
		{"unknown id echoes the id", "mystery", "mystery", domain.DefaultBackgroundImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := store.GetFolderInfo(tt.folderID)
			assert.Equal(t, tt.wantName, info.Name)
			assert.Equal(t, tt.wantBg, info.Appearance.BackgroundImage)
		})
	}
}

func TestTreeKeySetTracksFolderLifecycle(t *testing.T) {
	rem := newFakeRemote()
	store := NewStore(Options{Remote: rem})

	a, err := store.CreateFolder(context.Background(), domain.RootID, "A")
	require.NoError(t, err)
	b, err := store.CreateFolder(context.Background(), domain.RootID, "B")
	require.NoError(t, err)
	c, err := store.CreateFolder(context.Background(), a.ID, "C")
	require.NoError(t, err)
	f, err := store.UploadFile(context.Background(), b.ID, remote.Upload{Name: "f.txt", Size: 1, Content: strings.NewReader("x")})
	require.NoError(t, err)

	tree := store.Tree()
	for _, id := range []string{domain.RootID, a.ID, b.ID, c.ID} {
		assert.Contains(t, tree, id)
	}
	assert.NotContains(t, tree, f.ID, "files never get their own key")

	require.NoError(t, store.DeleteItem(context.Background(), a.ID, domain.RootID, domain.KindFolder))

	tree = store.Tree()
	assert.Contains(t, tree, domain.RootID)
	assert.Contains(t, tree, b.ID)
	assert.NotContains(t, tree, a.ID)
	assert.NotContains(t, tree, c.ID)
}

func TestMutationsPublishEvents(t *testing.T) {
	bus := events.NewBroadcaster()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	store := NewStore(Options{Remote: newFakeRemote(), Bus: bus})

	entry, err := store.CreateFolder(context.Background(), domain.RootID, "Watched")
	require.NoError(t, err)
	require.NoError(t, store.RenameItem(context.Background(), entry.ID, domain.RootID, "Renamed"))
	require.NoError(t, store.DeleteItem(context.Background(), entry.ID, domain.RootID, domain.KindFolder))

	wantTypes := []string{events.EventCreate, events.EventRename, events.EventDelete}
	for _, want := range wantTypes {
		ev := <-ch
		assert.Equal(t, want, ev.Type)
		assert.Equal(t, entry.ID, ev.ItemID)
	}
}

func TestSnapshotSaveFailureDoesNotFailMutation(t *testing.T) {
	snap := &memTreeStore{failSave: true}
	store := NewStore(Options{Remote: newFakeRemote(), Snapshots: snap})

	_, err := store.CreateFolder(context.Background(), domain.RootID, "Still Works")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.saveCalls)
	require.Len(t, store.ListChildren(context.Background(), domain.RootID), 1)
}

func TestConcurrentUploadsToSameFolderKeepAllEntries(t *testing.T) {
	rem := newFakeRemote()
	store := NewStore(Options{Remote: rem})
	store.ListChildren(context.Background(), "r1")

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			up := remote.Upload{Name: fmt.Sprintf("file-%d.txt", n), Size: 1, Content: strings.NewReader("x")}
			_, err := store.UploadFile(context.Background(), "r1", up)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	children := store.ListChildren(context.Background(), "r1")
	assert.Len(t, children, workers, "concurrent writers to one folder must not lose entries")
}
