package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, &Config{
		DB:      "convert2group.db",
		Dispose: "disable",
		Archive: "disposed-comps.xml",
		Report:  "convert2group-report.txt",
	}, cfg)
}

func TestLoad_FileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "convert2group.yaml"),
		[]byte("db: hdb.sqlite\ndispose: delete\ntest: true\n"), 0o644))

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "hdb.sqlite", cfg.DB)
	assert.Equal(t, "delete", cfg.Dispose)
	assert.True(t, cfg.Test)
	assert.Equal(t, "disposed-comps.xml", cfg.Archive, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(file, []byte("db: from-file.db\n"), 0o644))
	t.Setenv("C2G_DB", "from-env.db")
	t.Setenv("C2G_VERBOSE", "true")

	cfg, err := Load(New(), file)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DB)
	assert.True(t, cfg.Verbose)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("C2G_ARCHIVE", "env.xml")

	v := New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(KeyArchive, "", "")
	require.NoError(t, v.BindPFlag(KeyArchive, flags.Lookup(KeyArchive)))
	require.NoError(t, flags.Parse([]string{"--archive", "flag.yaml"}))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "flag.yaml", cfg.Archive)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidDispose(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("C2G_DISPOSE", "drop")

	_, err := Load(New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be delete or disable")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{DB: "x", Dispose: "disable", Archive: "a.xml"}, false},
		{"dispose case-insensitive", Config{DB: "x", Dispose: "DELETE", Archive: "a.xml"}, false},
		{"empty db", Config{Dispose: "disable", Archive: "a.xml"}, true},
		{"empty archive", Config{DB: "x", Dispose: "disable"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
