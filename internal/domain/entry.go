package domain

import (
	"fmt"
	"time"
)

// EntryKind represents the type of a tree entry
type EntryKind int

const (
	KindFile EntryKind = iota
	KindFolder
)

// String returns the string representation of the kind
func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// ParseEntryKind parses a string into an EntryKind
func ParseEntryKind(s string) (EntryKind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "folder":
		return KindFolder, nil
	default:
		return 0, fmt.Errorf("invalid entry kind: %q", s)
	}
}

// Appearance holds folder display overrides for the consumer UI
type Appearance struct {
	// BackgroundImage is the path of the page background shown inside the folder
	BackgroundImage string `json:"backgroundImage"`

	// Icon is the path of the folder icon
	Icon string `json:"icon"`
}

// Default appearance values used when a folder carries no override
const (
	DefaultBackgroundImage = "/background.png"
	DefaultFolderIcon      = "/Folder.png"
)

// DefaultAppearance returns the appearance used for undecorated folders
func DefaultAppearance() Appearance {
	return Appearance{
		BackgroundImage: DefaultBackgroundImage,
		Icon:            DefaultFolderIcon,
	}
}

// Entry represents a file or folder in the tree
type Entry struct {
	// ID is an opaque unique identifier, stable across renames at the remote
	ID string `json:"id"`

	// Name is the display name, mutable via rename
	Name string `json:"name"`

	// Kind indicates whether this is a file or a folder
	Kind EntryKind `json:"kind"`

	// ParentID identifies the containing folder, empty for root-level folders
	ParentID string `json:"parentId,omitempty"`

	// CreatedAt is immutable once set
	CreatedAt time.Time `json:"createdAt"`

	// SizeLabel is a human-readable size string, files only
	SizeLabel string `json:"sizeLabel,omitempty"`

	// IsVirtual marks a placeholder folder with no remote counterpart.
	// Virtual folders pad the root set to a fixed count and reject mutations.
	IsVirtual bool `json:"isVirtual,omitempty"`

	// LocalOnly marks an entry whose identifier was synthesized locally
	// after a remote failure; it is excluded from remote-consistency claims
	LocalOnly bool `json:"localOnly,omitempty"`

	// Appearance is an optional display override, folders only
	Appearance *Appearance `json:"appearance,omitempty"`
}

// IsFolder returns true if this entry is a folder
func (e Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// IsFile returns true if this entry is a regular file
func (e Entry) IsFile() bool {
	return e.Kind == KindFile
}

// IsRootLevel returns true if the entry sits directly under the root
func (e Entry) IsRootLevel() bool {
	return e.ParentID == ""
}

// FormatSizeLabel renders a byte count as a human-readable size string
func FormatSizeLabel(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	case bytes < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1024*1024*1024))
	}
}
