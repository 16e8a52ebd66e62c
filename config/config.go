package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v2"
)

//go:embed configs/*.json configs/*.yaml
var configFS embed.FS

var networkFile = map[string]string{
	"dev":   "configs/dev.json",   // dev:   local ledger, default size classes
	"large": "configs/large.yaml", // large: adds the 512 chunk class
}

// Duration is a time.Duration read from a string such as "2s".
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the service configuration.
type Config struct {
	ID              string      `json:"id" yaml:"id"`
	BlockChunkSizes []int       `json:"block_chunk_sizes" yaml:"block_chunk_sizes"`
	RefillLimit     int         `json:"refill_limit" yaml:"refill_limit"`
	RefillLimits    map[int]int `json:"refill_limits,omitempty" yaml:"refill_limits,omitempty"`
	Interval        Duration    `json:"interval" yaml:"interval"`
	ParallelPrepare bool        `json:"parallel_prepare" yaml:"parallel_prepare"`
	DataPath        string      `json:"data_path" yaml:"data_path"`
	MetricsAddr     string      `json:"metrics_addr" yaml:"metrics_addr"`
	OTLPEndpoint    string      `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	LogLevel        string      `json:"log_level" yaml:"log_level"`
	LogJSON         bool        `json:"log_json" yaml:"log_json"`
	LogModules      string      `json:"log_modules" yaml:"log_modules"`
	FeeAccount      uint32      `json:"fee_account" yaml:"fee_account"`
}

// ReadConfig loads a named embedded config or, failing that, the file at
// id. Files ending in .yaml or .yml are YAML, anything else is JSON.
func ReadConfig(id string) (cfg *Config, err error) {
	var data []byte
	path, ok := networkFile[id]
	if ok {
		data, err = configFS.ReadFile(path)
	} else {
		path = id
		data, err = os.ReadFile(id)
	}
	if err != nil {
		return nil, err
	}
	cfg = &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", zkerrors.ErrCInvalidConfig, path, err)
	}
	return cfg, nil
}

// Validate checks the size classes, limits and interval.
func (c *Config) Validate() error {
	if len(c.BlockChunkSizes) == 0 {
		return fmt.Errorf("%w: block_chunk_sizes is empty", zkerrors.ErrCInvalidConfig)
	}
	sizes := slices.Clone(c.BlockChunkSizes)
	slices.Sort(sizes)
	for i, size := range sizes {
		if size <= 0 || size > types.MaxBlockChunkSize {
			return fmt.Errorf("%w: block size %d outside 1..%d", zkerrors.ErrCInvalidConfig, size, types.MaxBlockChunkSize)
		}
		if i > 0 && sizes[i-1] == size {
			return fmt.Errorf("%w: duplicate block size %d", zkerrors.ErrCInvalidConfig, size)
		}
	}
	if c.RefillLimit <= 0 {
		return fmt.Errorf("%w: refill_limit must be positive, got %d", zkerrors.ErrCInvalidConfig, c.RefillLimit)
	}
	for size, limit := range c.RefillLimits {
		if !slices.Contains(sizes, size) {
			return fmt.Errorf("%w: refill_limits has unknown block size %d", zkerrors.ErrCInvalidConfig, size)
		}
		if limit <= 0 {
			return fmt.Errorf("%w: refill limit for block size %d must be positive, got %d", zkerrors.ErrCInvalidConfig, size, limit)
		}
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", zkerrors.ErrCInvalidConfig, c.Interval)
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("%w: %v", zkerrors.ErrCInvalidConfig, err)
		}
	}
	if types.AccountID(c.FeeAccount) > types.MaxAccountID() {
		return fmt.Errorf("%w: fee_account %d exceeds the account tree", zkerrors.ErrCInvalidConfig, c.FeeAccount)
	}
	return nil
}

// LimitFor is the backlog cap of one size class.
func (c *Config) LimitFor(size int) int {
	if limit, ok := c.RefillLimits[size]; ok {
		return limit
	}
	return c.RefillLimit
}
