package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/schedrace/internal/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestStoreConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "schedrace.yaml")
	require.False(t, exists(path))
	require.NoError(t, storeConfig(path, model.DefaultConfig()))
	require.True(t, exists(path))
	require.False(t, exists(filepath.Dir(path)))

	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	cfg, err := model.LoadConfig(f)
	require.NoError(t, err)
	require.Equal(t, model.DefaultConfig().Target.Path, cfg.Target.Path)
	require.Equal(t, model.DefaultStatement, cfg.State.Client.Statement)
}

func TestApplyOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg := model.DefaultConfig()
	applyOverrides(&cfg)
	require.Equal(t, model.DefaultConfig(), cfg)

	viper.Set("pool.workers", 3)
	viper.Set("rounds.max", 10)
	viper.Set("service.verbose", true)
	applyOverrides(&cfg)
	require.Equal(t, 3, cfg.Workers())
	require.Equal(t, uint64(10), cfg.MaxRounds())
	require.Equal(t, uint64(1), cfg.FirstRound())
	require.True(t, cfg.Verbose())
}
