package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"
)

func TestReadingNonExistingConfigFile(t *testing.T) {
	cfg := Config{
		ConfigFile: "non-existing-file",
	}
	_, err := ReadConfigFile(&cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigFile(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	cfg := &Config{
		ConfigFile: filepath.Join(dir, "config.ini"),
	}
	err := os.WriteFile(cfg.ConfigFile, []byte("dbdir = /tmp/ledger\nnetwork-params = devnet.yaml"), 0o600)
	require.NoError(t, err)

	cfg, err = ReadConfigFile(cfg)
	require.NoError(t, err)
	require.Equal(t, "/tmp/ledger", cfg.DbDir)
	require.Equal(t, "devnet.yaml", cfg.NetworkParams)
}

func TestReadConfigFilePathNotSet(t *testing.T) {
	cfg, err := ReadConfigFile(&Config{})
	require.NoError(t, err)
	require.Equal(t, &Config{}, cfg)
}

func TestSetupConfigFollowsHomeDir(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig()
	cfg.HomeDir = home

	cfg, err := SetupConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, defaultDbDirName), cfg.DbDir)
	require.Equal(t, filepath.Join(home, defaultLogDirname), cfg.LogDir)
}

func TestSetupConfigKeepsExplicitPaths(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig()
	cfg.HomeDir = home
	cfg.DbDir = filepath.Join(home, "elsewhere", "..", "ledger")

	cfg, err := SetupConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "ledger"), cfg.DbDir)
}

func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("INCENTIVES_TEST_DIR", "/var/lib/incentives")
	require.Equal(t, "/var/lib/incentives/db", cleanAndExpandPath("$INCENTIVES_TEST_DIR/./db"))
	require.Empty(t, cleanAndExpandPath(""))
}

func TestNamespacedFlags(t *testing.T) {
	cfg := DefaultConfig()
	_, err := flags.NewParser(cfg, flags.Default).ParseArgs([]string{
		"--sampling.max-search-tries=7",
		"--sampling.proof-period-blocks=30",
		"--staking.withdrawal-delay=1h",
		"--disable-producer",
	})
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Sampling.MaxSearchTries)
	require.Equal(t, uint64(30), cfg.Sampling.ProofPeriodInBlocks)
	require.Equal(t, time.Hour, cfg.Staking.WithdrawalDelay)
	require.True(t, cfg.DisableProducer)
}
