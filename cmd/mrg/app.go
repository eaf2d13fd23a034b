package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amiezra1/mrg/internal/activity"
	"github.com/amiezra1/mrg/internal/authz"
	"github.com/amiezra1/mrg/internal/config"
	"github.com/amiezra1/mrg/internal/domain"
	"github.com/amiezra1/mrg/internal/events"
	"github.com/amiezra1/mrg/internal/folderstore"
	"github.com/amiezra1/mrg/internal/lock"
	"github.com/amiezra1/mrg/internal/logger"
	"github.com/amiezra1/mrg/internal/remote"
	"github.com/amiezra1/mrg/internal/remote/gdrive"
	"github.com/amiezra1/mrg/internal/remote/localfs"
	"github.com/amiezra1/mrg/internal/snapshot"
)

// app wires the explicitly constructed components together. Nothing here is
// a process-wide singleton except the logger.
type app struct {
	cfgPath string

	cfg        *config.Config
	guard      *lock.Guard
	snapshots  *snapshot.Store
	activities *activity.Log
	backend    remote.Storage
	bus        *events.Broadcaster
	engine     *authz.Engine
	store      *folderstore.Store
}

func newApp() *app {
	return &app{}
}

// build constructs every component from configuration
func (a *app) build(ctx context.Context, command string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		if !errors.Is(err, domain.ErrConfigNotFound) {
			return err
		}
		cfg = config.Default()
	}
	a.cfg = cfg

	if err := logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		File: logger.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   cfg.Log.Compress,
		},
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()

	// The local databases assume a single writer process
	a.guard, err = lock.NewGuard(cfg.DataDir)
	if err != nil {
		return err
	}
	if err := a.guard.Acquire(command); err != nil {
		return err
	}

	a.snapshots, err = snapshot.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}

	a.activities, err = activity.NewLog(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}

	a.backend = a.buildRemote(ctx, log)
	a.bus = events.NewBroadcaster()

	a.engine = authz.NewEngine(authz.Options{
		Credentials: credentialsFromConfig(cfg.Users),
		Sessions:    a.snapshots,
		Resolver:    authz.NewRoleResolver(nil, groupRolesFromConfig(cfg.GroupRoles), log),
		Bus:         a.bus,
		Logger:      log,
	})

	a.store = folderstore.NewStore(folderstore.Options{
		Remote:      a.backend,
		Snapshots:   a.snapshots,
		Bus:         a.bus,
		Decorations: cfg.Decorations(),
		Logger:      log,
	})
	a.store.Initialize(ctx)

	return nil
}

// buildRemote selects the configured backend, degrading to offline mode when
// the backend cannot be constructed
func (a *app) buildRemote(ctx context.Context, log logger.Logger) remote.Storage {
	switch a.cfg.Remote.Provider {
	case config.ProviderGDrive:
		backend, err := gdrive.New(ctx,
			a.cfg.Remote.ClientID,
			a.cfg.Remote.ClientSecret,
			a.cfg.Remote.TokenPath,
			a.cfg.Remote.Root,
		)
		if err != nil {
			log.Warn("failed to connect to remote backend, running offline", "error", err)
			return remote.NewUnavailable()
		}
		return backend

	case config.ProviderLocal:
		backend, err := localfs.New(a.cfg.Remote.Root)
		if err != nil {
			log.Warn("failed to open local library root, running offline",
				"root", a.cfg.Remote.Root, "error", err)
			return remote.NewUnavailable()
		}
		return backend

	default:
		return remote.NewUnavailable()
	}
}

// close releases all component resources
func (a *app) close() {
	if a.backend != nil {
		a.backend.Close()
	}
	if a.activities != nil {
		a.activities.Close()
	}
	if a.snapshots != nil {
		a.snapshots.Close()
	}
	if a.guard != nil {
		if err := a.guard.Release(); err != nil {
			logger.Get().Warn("failed to release data directory guard", "error", err)
		}
	}
	logger.Shutdown()
}

// actor names the current identity for the activity journal
func (a *app) actor() string {
	if user := a.engine.CurrentUser(); user != nil {
		return user.Username
	}
	return "anonymous"
}

// record journals a user action; failures are logged, never surfaced
func (a *app) record(action, itemPath string, details map[string]string) {
	if err := a.activities.Record(action, a.actor(), itemPath, details); err != nil {
		logger.Get().Warn("failed to record activity", "action", action, "error", err)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mrg",
		Short:         "Folder manager over a remote document library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.build(cmd.Context(), cmd.Name())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "path to config file")

	root.AddCommand(
		a.authCmd(),
		a.rootsCmd(),
		a.lsCmd(),
		a.mkdirCmd(),
		a.uploadCmd(),
		a.rmCmd(),
		a.renameCmd(),
		a.infoCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.activityCmd(),
	)

	return root
}

// credentialsFromConfig converts configured users to the credential table;
// nil means the engine keeps its built-in defaults
func credentialsFromConfig(users []config.UserConfig) []authz.Credential {
	if len(users) == 0 {
		return nil
	}

	creds := make([]authz.Credential, 0, len(users))
	for _, u := range users {
		perms := make([]domain.Capability, 0, len(u.Permissions))
		for _, p := range u.Permissions {
			perms = append(perms, domain.Capability(p))
		}
		creds = append(creds, authz.Credential{
			Username:    u.Username,
			Password:    u.Password,
			DisplayName: u.DisplayName,
			Role:        domain.Role(u.Role),
			Permissions: perms,
		})
	}
	return creds
}

// groupRolesFromConfig converts the configured directory mapping; nil keeps
// the resolver's built-in mapping
func groupRolesFromConfig(mapping map[string]string) map[string]domain.Role {
	if len(mapping) == 0 {
		return nil
	}

	roles := make(map[string]domain.Role, len(mapping))
	for group, role := range mapping {
		roles[group] = domain.Role(role)
	}
	return roles
}
