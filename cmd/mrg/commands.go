package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amiezra1/mrg/internal/domain"
	"github.com/amiezra1/mrg/internal/progress"
	"github.com/amiezra1/mrg/internal/remote"
	"github.com/amiezra1/mrg/internal/remote/gdrive"
)

func (a *app) authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to the remote document library",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := gdrive.NewAuthenticator(
				a.cfg.Remote.ClientID,
				a.cfg.Remote.ClientSecret,
				a.cfg.Remote.TokenPath,
			)
			_, err := auth.Authenticate(cmd.Context())
			return err
		},
	}
}

func (a *app) rootsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "List the root folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, folder := range a.store.RootFolders() {
				printEntry(folder)
			}
			return nil
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <folder-id>",
		Short: "List the contents of a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, entry := range a.store.ListChildren(cmd.Context(), args[0]) {
				printEntry(entry)
			}
			return nil
		},
	}
}

func (a *app) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <parent-id> <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, name := args[0], args[1]
			if !a.engine.CanCreateIn(cmd.Context(), parentID) {
				return domain.ErrPermissionDenied
			}

			entry, err := a.store.CreateFolder(cmd.Context(), parentID, name)
			if err != nil {
				return err
			}

			a.record("createFolder", entry.ID, map[string]string{"name": name})
			fmt.Printf("Created folder %s (%s)\n", entry.Name, entry.ID)
			return nil
		},
	}
}

func (a *app) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <folder-id> <file>",
		Short: "Upload a file into a folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folderID, path := args[0], args[1]
			if !a.engine.CanCreateIn(cmd.Context(), folderID) {
				return domain.ErrPermissionDenied
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			size := int64(-1)
			if info, err := f.Stat(); err == nil {
				size = info.Size()
			}

			content := progress.NewReader(f, size, func(transferred, total int64) {
				fmt.Printf("\r%s", progress.Bar(transferred, total, 30))
			})

			entry, err := a.store.UploadFile(cmd.Context(), folderID, remote.Upload{
				Name:    filepath.Base(path),
				Size:    size,
				Content: content,
			})
			fmt.Println()
			if err != nil {
				return err
			}

			a.record("uploadFile", entry.ID, map[string]string{"name": entry.Name, "size": entry.SizeLabel})
			fmt.Printf("Uploaded %s (%s, %s)\n", entry.Name, entry.ID, entry.SizeLabel)
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <item-id> <parent-id> <kind>",
		Short: "Delete a file or folder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, parentID := args[0], args[1]
			kind, err := domain.ParseEntryKind(args[2])
			if err != nil {
				return err
			}

			if !a.engine.CanDeleteItem(cmd.Context(), a.lookupEntry(itemID, parentID)) {
				return domain.ErrPermissionDenied
			}

			if err := a.store.DeleteItem(cmd.Context(), itemID, parentID, kind); err != nil {
				return err
			}

			a.record("deleteItem", itemID, map[string]string{"kind": kind.String()})
			fmt.Printf("Deleted %s\n", itemID)
			return nil
		},
	}
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <item-id> <parent-id> <new-name>",
		Short: "Rename a file or folder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, parentID, newName := args[0], args[1], args[2]

			if !a.engine.CanRenameItem(cmd.Context(), a.lookupEntry(itemID, parentID)) {
				return domain.ErrPermissionDenied
			}

			if err := a.store.RenameItem(cmd.Context(), itemID, parentID, newName); err != nil {
				return err
			}

			a.record("renameItem", itemID, map[string]string{"newName": newName})
			fmt.Printf("Renamed %s to %s\n", itemID, newName)
			return nil
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <folder-id>",
		Short: "Show folder display information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := a.store.GetFolderInfo(args[0])
			fmt.Printf("Name:       %s\n", info.Name)
			fmt.Printf("Icon:       %s\n", info.Appearance.Icon)
			fmt.Printf("Background: %s\n", info.Appearance.BackgroundImage)
			return nil
		},
	}
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Log in with a username and password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.engine.Login(args[0], args[1]) {
				return domain.ErrAuthenticationFailed
			}

			user := a.engine.CurrentUser()
			a.record("login", "", nil)
			fmt.Printf("Logged in as %s (%s)\n", user.DisplayName, user.Role)
			return nil
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.record("logout", "", nil)
			a.engine.Logout()
			fmt.Println("Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the active identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			user := a.engine.CurrentUser()
			if user == nil {
				fmt.Println("Not logged in")
			} else {
				fmt.Printf("%s (%s, role %s)\n", user.Username, user.DisplayName, user.Role)
			}
			fmt.Printf("Admin override: %v\n", a.engine.IsAdmin())
			return nil
		},
	}
}

func (a *app) activityCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent user activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.activities.History(limit)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s  %-12s %-12s %s\n",
					r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, r.User, r.ItemPath)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of records")
	return cmd
}

// lookupEntry finds the item in the cached tree for the per-item permission
// check, synthesizing a minimal entry when the cache has no record of it
func (a *app) lookupEntry(itemID, parentID string) domain.Entry {
	if entry, ok := a.store.Tree().FindEntry(itemID); ok {
		return entry
	}

	ref := parentID
	if ref == domain.RootID {
		ref = ""
	}
	return domain.Entry{ID: itemID, ParentID: ref}
}

func printEntry(e domain.Entry) {
	marker := ""
	if e.IsVirtual {
		marker = " (virtual)"
	} else if e.LocalOnly {
		marker = " (local)"
	}

	if e.IsFolder() {
		fmt.Printf("%-40s  folder  %s%s\n", e.ID, e.Name, marker)
		return
	}
	fmt.Printf("%-40s  file    %s  %s%s\n", e.ID, e.Name, e.SizeLabel, marker)
}
