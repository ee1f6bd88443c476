package cli

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/benchmark"
	"github.com/spaghettifunk/prism/engine/core"
)

func init() {
	core.SetLogOutput(io.Discard)
}

const triangleOBJ = `v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

func immediate(ctx context.Context) error {
	return ctx.Err()
}

// writeConfig stores a small configuration in a temp dir and returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	c := engine.DefaultApplicationConfig()
	c.Application.StartWidth = 32
	c.Application.StartHeight = 24
	c.Application.LogLevel = "error"
	c.Benchmark.Tier = "basic"
	c.Benchmark.DurationMS = 10
	c.Benchmark.Seed = 7
	c.History.Path = filepath.Join(dir, "history.json")

	path := filepath.Join(dir, "prism.toml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, c.Encode(f))
	require.NoError(t, f.Close())
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{engineOptions: []engine.Option{
		engine.WithScheduler(benchmark.SchedulerFunc(immediate)),
		engine.WithMemoryProbe(nil),
	}}
	root := newRootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTiersCommand(t *testing.T) {
	out, err := run(t, "tiers", "--config", writeConfig(t))
	require.NoError(t, err)
	for _, tier := range []string{"basic", "medium", "stress"} {
		assert.Contains(t, out, tier)
	}
}

func TestFormatsCommand(t *testing.T) {
	out, err := run(t, "formats", "--config", writeConfig(t))
	require.NoError(t, err)
	for _, ext := range []string{".gltf", ".glb", ".obj", ".fbx"} {
		assert.Contains(t, out, ext)
	}
}

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	out, err := run(t, "config", "--config", writeConfig(t))
	require.NoError(t, err)

	decoded := engine.DefaultApplicationConfig()
	require.NoError(t, engine.DecodeApplicationConfig(bytes.NewBufferString(out), decoded))
	assert.Equal(t, "basic", decoded.Benchmark.Tier)
	assert.Equal(t, int64(10), decoded.Benchmark.DurationMS)
	assert.Equal(t, uint32(32), decoded.Application.StartWidth)
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prism.toml")
	require.NoError(t, os.WriteFile(path, []byte("[benchmark]\ntier = \"ultra\"\n"), 0o644))
	_, err := run(t, "tiers", "--config", path)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
}

func TestBenchAndHistory(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "history", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No benchmark history yet.")

	snapshot := filepath.Join(t.TempDir(), "frame.png")
	out, err = run(t, "bench", "--config", cfg, "--duration", "5ms", "--snapshot", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "Benchmark basic")
	assert.Contains(t, out, "Score")

	f, err := os.Open(snapshot)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())

	out, err = run(t, "history", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Benchmark history")
	assert.Contains(t, out, "basic")

	out, err = run(t, "history", "--config", cfg, "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	out, err = run(t, "history", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No benchmark history yet.")
}

func TestBenchUnknownTier(t *testing.T) {
	_, err := run(t, "bench", "--config", writeConfig(t), "--tier", "ultra")
	assert.True(t, errors.Is(err, benchmark.ErrUnknownTier))
}

func TestViewCommand(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "tri.obj")
	require.NoError(t, os.WriteFile(model, []byte(triangleOBJ), 0o644))

	out, err := run(t, "view", model, "--config", writeConfig(t), "--frames", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "tri.obj")
	assert.Contains(t, out, "Frames")
	assert.Contains(t, out, "Draw calls")
}

func TestInspectReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "tri.obj")
	require.NoError(t, os.WriteFile(good, []byte(triangleOBJ), 0o644))
	missing := filepath.Join(dir, "missing.obj")

	out, err := run(t, "inspect", good, missing, "--config", writeConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 models failed to load")
	assert.Contains(t, out, "tri.obj")
	assert.Contains(t, out, "Triangles")
	assert.Contains(t, out, "missing.obj")

	out, err = run(t, "inspect", good, "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Meshes")
}
