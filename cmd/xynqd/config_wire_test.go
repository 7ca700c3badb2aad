package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMergesFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xynqdb.conf")
	require.NoError(t, os.WriteFile(path, []byte("(tcp.listen-backlog 256)\n(log.level \"info\")\n"), 0o644))

	cfg, err := loadConfig(path, true, []string{"log.level=verbose"}, nil)
	require.NoError(t, err)

	backlog, err := cfg.GetInt64("tcp.listen-backlog")
	require.NoError(t, err)
	assert.EqualValues(t, 256, backlog)

	level, err := cfg.GetString("log.level")
	require.NoError(t, err)
	assert.Equal(t, "verbose", level)
}

func TestLoadConfigListenOverridesBindList(t *testing.T) {
	cfg, err := loadConfig(defaultConfigPath, false, nil, []string{"127.0.0.1:1", "127.0.0.1:2"})
	require.NoError(t, err)

	addrs, err := resolveBindAddrs(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:1", "127.0.0.1:2"}, addrs)
}

func TestLoadConfigMissingExplicitPathErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.conf"), true, nil, nil)
	assert.Error(t, err)
}

func TestLoadConfigMissingDefaultPathIsTolerated(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.conf"), false, nil, nil)
	assert.NoError(t, err)
}

func TestResolveNumThreadsAuto(t *testing.T) {
	cfg, err := loadConfig(defaultConfigPath, false, nil, nil)
	require.NoError(t, err)
	n, err := resolveNumThreads(cfg)
	require.NoError(t, err)
	assert.Equal(t, -1, n)
}

func TestResolveNumThreadsRejectsGarbage(t *testing.T) {
	cfg, err := loadConfig(defaultConfigPath, false, []string{"task.num-threads=not-a-number"}, nil)
	require.NoError(t, err)
	_, err = resolveNumThreads(cfg)
	assert.Error(t, err)
}
