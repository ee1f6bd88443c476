package engine

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/benchmark"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/history"
)

const DefaultConfigFile = "prism.toml"

type ApplicationSection struct {
	// The application name used for the renderer, if applicable.
	Name string `toml:"name"`
	// Frame buffer width of the headless renderer.
	StartWidth uint32 `toml:"width"`
	// Frame buffer height of the headless renderer.
	StartHeight uint32 `toml:"height"`
	LogLevel    string `toml:"log_level"`
}

type BenchmarkSection struct {
	Tier       string `toml:"tier"`
	DurationMS int64  `toml:"duration_ms"`
	TargetFPS  int    `toml:"target_fps"`
	// 0 picks a seed from the clock.
	Seed         uint64 `toml:"seed"`
	SampleMemory bool   `toml:"sample_memory"`
}

type HistorySection struct {
	Path       string `toml:"path"`
	MaxEntries int    `toml:"max_entries"`
}

type LoaderSection struct {
	MaxFileSizeMB int64   `toml:"max_file_size_mb"`
	TargetSize    float32 `toml:"target_size"`
	AutoScale     bool    `toml:"auto_scale"`
	AutoCenter    bool    `toml:"auto_center"`
	EnableShadows bool    `toml:"enable_shadows"`
}

/** @brief Everything the engine reads from prism.toml. */
type ApplicationConfig struct {
	Application ApplicationSection `toml:"application"`
	Benchmark   BenchmarkSection   `toml:"benchmark"`
	History     HistorySection     `toml:"history"`
	Loader      LoaderSection      `toml:"loader"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Application: ApplicationSection{
			Name:        "prism",
			StartWidth:  320,
			StartHeight: 180,
			LogLevel:    "info",
		},
		Benchmark: BenchmarkSection{
			Tier:         string(benchmark.TierMedium),
			DurationMS:   30000,
			TargetFPS:    60,
			SampleMemory: true,
		},
		History: HistorySection{
			Path:       "benchmark-history.json",
			MaxEntries: history.DefaultMaxEntries,
		},
		Loader: LoaderSection{
			MaxFileSizeMB: assets.DefaultMaxFileSize / 1024 / 1024,
			TargetSize:    assets.DefaultTargetSize,
			AutoScale:     true,
			AutoCenter:    true,
			EnableShadows: true,
		},
	}
}

/**
 * @brief Reads the configuration at path on top of the defaults. A missing
 * file yields the defaults; unknown keys are rejected.
 */
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		core.LogDebug("no config file at '%s', using defaults", path)
		return config, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open config '%s'", path)
	}
	defer f.Close()
	if err := DecodeApplicationConfig(f, config); err != nil {
		return nil, errors.Wrapf(err, "config '%s'", path)
	}
	return config, nil
}

// DecodeApplicationConfig reads TOML from r into config and validates the result.
func DecodeApplicationConfig(r io.Reader, config *ApplicationConfig) error {
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(config); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return errors.Wrap(core.ErrInvalidConfig, strict.String())
		}
		return errors.Wrap(err, "failed to decode config")
	}
	return config.Validate()
}

func (c *ApplicationConfig) Validate() error {
	switch {
	case c.Application.StartWidth == 0 || c.Application.StartHeight == 0:
		return errors.Wrap(core.ErrInvalidConfig, "application width and height must be > 0")
	case c.Benchmark.DurationMS <= 0:
		return errors.Wrap(core.ErrInvalidConfig, "benchmark duration_ms must be > 0")
	case c.Benchmark.TargetFPS <= 0:
		return errors.Wrap(core.ErrInvalidConfig, "benchmark target_fps must be > 0")
	case c.History.MaxEntries <= 0:
		return errors.Wrap(core.ErrInvalidConfig, "history max_entries must be > 0")
	case c.History.Path == "":
		return errors.Wrap(core.ErrInvalidConfig, "history path is empty")
	case c.Loader.MaxFileSizeMB <= 0:
		return errors.Wrap(core.ErrInvalidConfig, "loader max_file_size_mb must be > 0")
	case c.Loader.TargetSize <= 0:
		return errors.Wrap(core.ErrInvalidConfig, "loader target_size must be > 0")
	}
	if _, err := benchmark.LookupConfig(c.Benchmark.Tier); err != nil {
		return errors.Wrap(core.ErrInvalidConfig, err.Error())
	}
	return nil
}

// Encode writes the configuration as TOML.
func (c *ApplicationConfig) Encode(w io.Writer) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (c *ApplicationConfig) BenchmarkDuration() time.Duration {
	return time.Duration(c.Benchmark.DurationMS) * time.Millisecond
}

func (c *ApplicationConfig) LoadOptions() assets.LoadOptions {
	return assets.LoadOptions{
		AutoScale:     c.Loader.AutoScale,
		AutoCenter:    c.Loader.AutoCenter,
		EnableShadows: c.Loader.EnableShadows,
		TargetSize:    c.Loader.TargetSize,
		MaxFileSize:   c.Loader.MaxFileSizeMB * 1024 * 1024,
	}
}
