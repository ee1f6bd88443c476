package engine_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
)

func TestDefaultApplicationConfig(t *testing.T) {
	c := engine.DefaultApplicationConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, uint32(320), c.Application.StartWidth)
	assert.Equal(t, uint32(180), c.Application.StartHeight)
	assert.Equal(t, "medium", c.Benchmark.Tier)
	assert.Equal(t, 30*time.Second, c.BenchmarkDuration())
	assert.Equal(t, 60, c.Benchmark.TargetFPS)
	assert.Equal(t, 10, c.History.MaxEntries)
	assert.Equal(t, assets.DefaultLoadOptions(), c.LoadOptions())
}

func TestLoadApplicationConfigMissingFileUsesDefaults(t *testing.T) {
	c, err := engine.LoadApplicationConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultApplicationConfig(), c)
}

func TestLoadApplicationConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prism.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[benchmark]
tier = "stress"
duration_ms = 5000
seed = 42

[loader]
max_file_size_mb = 5
auto_center = false
`), 0o644))

	c, err := engine.LoadApplicationConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "stress", c.Benchmark.Tier)
	assert.Equal(t, 5*time.Second, c.BenchmarkDuration())
	assert.Equal(t, uint64(42), c.Benchmark.Seed)
	assert.Equal(t, 60, c.Benchmark.TargetFPS)
	assert.True(t, c.Benchmark.SampleMemory)
	assert.Equal(t, "prism", c.Application.Name)

	opts := c.LoadOptions()
	assert.Equal(t, int64(5*1024*1024), opts.MaxFileSize)
	assert.False(t, opts.AutoCenter)
	assert.True(t, opts.AutoScale)
}

func TestDecodeApplicationConfigRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "[benchmark]\nspeed = 2\n",
		"zero duration": "[benchmark]\nduration_ms = 0\n",
		"unknown tier":  "[benchmark]\ntier = \"ultra\"\n",
		"zero width":    "[application]\nwidth = 0\n",
		"empty history": "[history]\npath = \"\"\n",
		"no entries":    "[history]\nmax_entries = 0\n",
		"tiny target":   "[loader]\ntarget_size = -1.0\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			err := engine.DecodeApplicationConfig(strings.NewReader(content), engine.DefaultApplicationConfig())
			assert.True(t, errors.Is(err, core.ErrInvalidConfig), "got %v", err)
		})
	}

	err := engine.DecodeApplicationConfig(strings.NewReader("[benchmark\n"), engine.DefaultApplicationConfig())
	assert.Error(t, err)
}

func TestEncodeApplicationConfigRoundTrips(t *testing.T) {
	c := engine.DefaultApplicationConfig()
	c.Benchmark.Seed = 7
	c.Loader.TargetSize = 4.5

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	assert.Contains(t, buf.String(), "[benchmark]")

	decoded := engine.DefaultApplicationConfig()
	require.NoError(t, engine.DecodeApplicationConfig(&buf, decoded))
	assert.Equal(t, c, decoded)
}
