package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/stretchr/testify/require"
)

func TestReadEmbeddedConfigs(t *testing.T) {
	dev, err := ReadConfig("dev")
	require.NoError(t, err)
	require.NoError(t, dev.Validate())
	require.Equal(t, []int{10, 32, 72}, dev.BlockChunkSizes)
	require.Equal(t, 2*time.Second, time.Duration(dev.Interval))
	require.Equal(t, 5, dev.LimitFor(72))

	large, err := ReadConfig("large")
	require.NoError(t, err)
	require.NoError(t, large.Validate())
	require.True(t, large.ParallelPrepare)
	require.Equal(t, 500*time.Millisecond, time.Duration(large.Interval))
	require.Equal(t, 2, large.LimitFor(512))
	require.Equal(t, 8, large.LimitFor(10))
}

func TestReadConfigFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "prover.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"block_chunk_sizes":[10],"refill_limit":3,"refill_limits":{"10":1},"interval":"1m"}`), 0o644))
	cfg, err := ReadConfig(jsonPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1, cfg.LimitFor(10))
	require.Equal(t, time.Minute, time.Duration(cfg.Interval))

	yamlPath := filepath.Join(dir, "prover.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("block_chunk_sizes: [32]\nrefill_limit: 4\ninterval: 3s\nunknown_key: 1\n"), 0o644))
	_, err = ReadConfig(yamlPath)
	require.True(t, errors.Is(err, zkerrors.ErrCInvalidConfig))

	badDuration := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badDuration, []byte(`{"interval":"soon"}`), 0o644))
	_, err = ReadConfig(badDuration)
	require.True(t, errors.Is(err, zkerrors.ErrCInvalidConfig))

	_, err = ReadConfig(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	valid := func() *Config {
		return &Config{
			BlockChunkSizes: []int{10, 32},
			RefillLimit:     2,
			Interval:        Duration(time.Second),
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"no sizes":          func(c *Config) { c.BlockChunkSizes = nil },
		"zero size":         func(c *Config) { c.BlockChunkSizes = []int{0} },
		"oversized":         func(c *Config) { c.BlockChunkSizes = []int{4096} },
		"duplicate":         func(c *Config) { c.BlockChunkSizes = []int{32, 10, 32} },
		"zero limit":        func(c *Config) { c.RefillLimit = 0 },
		"unknown override":  func(c *Config) { c.RefillLimits = map[int]int{72: 1} },
		"negative override": func(c *Config) { c.RefillLimits = map[int]int{10: -1} },
		"zero interval":     func(c *Config) { c.Interval = 0 },
		"bad log level":     func(c *Config) { c.LogLevel = "chatty" },
		"fee account":       func(c *Config) { c.FeeAccount = 1 << 30 },
	}
	for name, mutate := range cases {
		c := valid()
		mutate(c)
		err := c.Validate()
		require.True(t, errors.Is(err, zkerrors.ErrCInvalidConfig), "%s: %v", name, err)
	}
}
