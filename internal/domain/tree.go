package domain

// RootID is the sentinel key for the root folder sequence
const RootID = "root"

// FolderTree maps a folder ID (including RootID) to the ordered sequence of
// its children. Insertion order is not semantically meaningful; display order
// is computed by the consumer.
type FolderTree map[string][]Entry

// NewFolderTree returns a tree containing only an empty root sequence
func NewFolderTree() FolderTree {
	return FolderTree{RootID: {}}
}

// Clone returns a deep copy of the tree
func (t FolderTree) Clone() FolderTree {
	clone := make(FolderTree, len(t))
	for id, entries := range t {
		seq := make([]Entry, len(entries))
		copy(seq, entries)
		clone[id] = seq
	}
	return clone
}

// FindEntry locates an entry by ID anywhere in the tree.
// The root sequence is checked first since root folders are the hot path.
func (t FolderTree) FindEntry(id string) (Entry, bool) {
	for _, e := range t[RootID] {
		if e.ID == id {
			return e, true
		}
	}
	for folderID, entries := range t {
		if folderID == RootID {
			continue
		}
		for _, e := range entries {
			if e.ID == id {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// FolderIDs returns the set of folder keys currently materialized
func (t FolderTree) FolderIDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	return ids
}
