package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPassesValidationOnceIdentitySet(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Server.UIN = 123456
	cfg.Server.Name = "desktop"

	assert.NoError(t, Validate(cfg))
	assert.Equal(t, DefaultPort, cfg.Network.Port)
	assert.Equal(t, filepath.Join(dir, "devices"), cfg.Devices.Directory)
	assert.Equal(t, filepath.Join(dir, "plugins"), cfg.Plugins.Directory)
}

func TestValidateRejectsMissingServerIdentity(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsBadPort(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Server.UIN = 1
	cfg.Server.Name = "x"
	cfg.Network.Port = 70000
	assert.Error(t, Validate(cfg))
}

func TestSaveConfigThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")

	cfg := DefaultConfig(dir)
	cfg.Server.UIN = 999
	cfg.Server.Name = "laptop"
	cfg.Server.Password = "s3cret"

	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, uint32(999), loaded.Server.UIN)
	assert.Equal(t, "laptop", loaded.Server.Name)
	assert.Equal(t, "s3cret", loaded.Server.Password)
}

func TestMustLoadCreatesDefaultOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")

	cfg, err := MustLoad(path, dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Network.Port)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestLoadParsesHumanReadableByteSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")

	contents := "server:\n  uin: 42\n  name: test\nlimits:\n  max_frame_bytes: \"2MiB\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*1024*1024), cfg.Limits.MaxFrameBytes.Uint64())
}

func TestDefaultConfigDirUsesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".config", "dcnnt"), DefaultConfigDir())
}
