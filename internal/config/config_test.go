package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiezra1/mrg/internal/domain"
)

const validYAML = `
data_dir: /tmp/mrg-test
log:
  level: debug
  format: json
remote:
  provider: gdrive
  client_id: test-client
  client_secret: test-secret
  root: FileManager
users:
  - username: admin
    password: admin123
    display_name: Administrator
    role: admin
    permissions: [view, add, delete, editRoot]
  - username: viewer
    password: view123
    display_name: Viewing User
    role: viewer
    permissions: [view]
group_roles:
  owners: admin
  members: contributor
root_folders:
  "1":
    name: Projects
    background_image: /projects.png
  "3":
    name: Archive
`

func TestLoadFromStringValid(t *testing.T) {
	cfg, err := LoadFromString(validYAML)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/mrg-test", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ProviderGDrive, cfg.Remote.Provider)
	assert.Equal(t, "FileManager", cfg.Remote.Root)
	require.Len(t, cfg.Users, 2)
	assert.Equal(t, "admin", cfg.Users[0].Username)
	assert.Equal(t, "admin", cfg.GroupRoles["owners"])
}

func TestLoadFromStringDefaults(t *testing.T) {
	cfg, err := LoadFromString("")
	require.NoError(t, err)

	assert.Equal(t, ProviderNone, cfg.Remote.Provider)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Users, "built-in credential table applies when none configured")
}

func TestLoadFromStringLocalProvider(t *testing.T) {
	cfg, err := LoadFromString("remote:\n  provider: local\n  root: /srv/library\n")
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, cfg.Remote.Provider)
	assert.Equal(t, "/srv/library", cfg.Remote.Root)
}

func TestLoadFromStringInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown provider", "remote:\n  provider: dropbox\n"},
		{"gdrive without credentials", "remote:\n  provider: gdrive\n"},
		{"local without root", "remote:\n  provider: local\n"},
		{"unknown role", "users:\n  - username: x\n    role: superuser\n"},
		{"empty username", "users:\n  - username: \"\"\n    role: viewer\n"},
		{"duplicate username", "users:\n  - username: x\n    role: viewer\n  - username: x\n    role: admin\n"},
		{"invalid permission", "users:\n  - username: x\n    role: viewer\n    permissions: [fly]\n"},
		{"invalid group role", "group_roles:\n  owners: boss\n"},
		{"root slot out of range", "root_folders:\n  \"10\":\n    name: Extra\n"},
		{"root slot not a number", "root_folders:\n  first:\n    name: Extra\n"},
		{"malformed yaml", "users: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromString(tt.yaml)
			assert.ErrorIs(t, err, domain.ErrConfigInvalid)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderGDrive, cfg.Remote.Provider)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDecorations(t *testing.T) {
	cfg, err := LoadFromString(validYAML)
	require.NoError(t, err)

	decorations := cfg.Decorations()
	require.Len(t, decorations, 2)

	first := decorations[1]
	assert.Equal(t, "Projects", first.Name)
	assert.Equal(t, "/projects.png", first.Appearance.BackgroundImage)
	assert.Equal(t, domain.DefaultFolderIcon, first.Appearance.Icon, "unset icon falls back to the default")

	third := decorations[3]
	assert.Equal(t, "Archive", third.Name)
	assert.Equal(t, domain.DefaultBackgroundImage, third.Appearance.BackgroundImage)
}

func TestDecorationsEmpty(t *testing.T) {
	assert.Nil(t, Default().Decorations())
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}
