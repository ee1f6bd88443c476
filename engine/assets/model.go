package assets

import (
	"os"
	"path/filepath"
	"time"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/assets/loaders"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported model format")
	ErrFileTooLarge      = errors.New("model file too large")
)

const (
	DefaultMaxFileSize int64   = 50 * 1024 * 1024
	DefaultTargetSize  float32 = 3
	// Colour of the material given to meshes that have none.
	defaultMaterialColour = 0x888888
)

/** @brief Post-processing applied to every loaded model. */
type LoadOptions struct {
	// Scale uniformly so the largest bounding box side equals TargetSize.
	AutoScale  bool
	AutoCenter bool
	// Turn cast and receive shadows on for every mesh.
	EnableShadows bool
	TargetSize    float32
	MaxFileSize   int64
}

func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		AutoScale:     true,
		AutoCenter:    true,
		EnableShadows: true,
		TargetSize:    DefaultTargetSize,
		MaxFileSize:   DefaultMaxFileSize,
	}
}

type ModelStatistics struct {
	MeshCount      int  `json:"meshCount"`
	MaterialCount  int  `json:"materialCount"`
	TriangleCount  int  `json:"triangleCount"`
	TextureCount   int  `json:"textureCount"`
	HasAnimations  bool `json:"hasAnimations"`
	AnimationCount int  `json:"animationCount"`
}

type ModelMetadata struct {
	Filename     string          `json:"filename"`
	Format       Format          `json:"format"`
	FileSize     int64           `json:"fileSize"`
	LoadTime     time.Time       `json:"loadTime"`
	LoadDuration time.Duration   `json:"loadDuration"`
	Statistics   ModelStatistics `json:"statistics"`
	Warnings     []string        `json:"warnings,omitempty"`
}

/** @brief A loaded and post-processed model ready to be added to a scene. */
type Model struct {
	Root       *scene.Group
	Animations []string
	Metadata   ModelMetadata
}

// Dispose releases the geometry and materials of the model.
func (m *Model) Dispose() {
	if m == nil {
		return
	}
	scene.DisposeTree(m.Root)
}

/**
 * @brief Validates, decodes and post-processes model files. Formats are
 * dispatched by extension to the registered decoders.
 */
type ModelLoader struct {
	options LoadOptions
	loaders map[Format]loaders.ModelLoader
	now     core.TimeSource
}

func NewModelLoader(options LoadOptions) *ModelLoader {
	if options.TargetSize <= 0 {
		options.TargetSize = DefaultTargetSize
	}
	if options.MaxFileSize <= 0 {
		options.MaxFileSize = DefaultMaxFileSize
	}
	return &ModelLoader{
		options: options,
		loaders: defaultLoaders(),
		now:     time.Now,
	}
}

func (l *ModelLoader) Options() LoadOptions {
	return l.options
}

// Register replaces the decoder used for a format.
func (l *ModelLoader) Register(format Format, loader loaders.ModelLoader) {
	l.loaders[format] = loader
}

// Validate checks the size limit first, then the extension.
func (l *ModelLoader) Validate(name string, size int64) error {
	if size > l.options.MaxFileSize {
		return errors.Wrapf(ErrFileTooLarge, "'%s' is %s, the limit is %dMB",
			name, core.FormatFileSize(size), l.options.MaxFileSize/1024/1024)
	}
	format := FormatOf(name)
	if _, ok := l.loaders[format]; !ok || format == FormatNone {
		return errors.Wrapf(ErrUnsupportedFormat, "'%s'", filepath.Ext(name))
	}
	return nil
}

func (l *ModelLoader) Load(path string) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat '%s'", path)
	}
	if info.IsDir() {
		return nil, errors.Errorf("'%s' is a directory", path)
	}
	if err := l.Validate(info.Name(), info.Size()); err != nil {
		return nil, err
	}

	start := l.now()
	format := FormatOf(path)
	res, err := l.loaders[format].Load(path)
	if err != nil {
		core.LogError("failed to load model '%s': %s", path, err.Error())
		return nil, err
	}
	for _, w := range res.Warnings {
		core.LogWarn("%s: %s", info.Name(), w)
	}

	// Statistics describe the file as decoded, before default materials are added.
	stats := ExtractStatistics(res.Root, len(res.Animations))
	l.process(res.Root)
	model := &Model{
		Root:       res.Root,
		Animations: res.Animations,
		Metadata: ModelMetadata{
			Filename:     info.Name(),
			Format:       format,
			FileSize:     info.Size(),
			LoadTime:     start,
			LoadDuration: l.now().Sub(start),
			Statistics:   stats,
			Warnings:     res.Warnings,
		},
	}
	core.LogInfo("loaded '%s': %d meshes, %s triangles in %s", info.Name(),
		model.Metadata.Statistics.MeshCount,
		core.FormatNumber(int64(model.Metadata.Statistics.TriangleCount)),
		core.FormatDuration(model.Metadata.LoadDuration))
	return model, nil
}

func (l *ModelLoader) process(root *scene.Group) {
	if l.options.AutoScale {
		scaleModel(root, l.options.TargetSize)
	}
	if l.options.AutoCenter {
		centerModel(root)
	}
	if l.options.EnableShadows {
		root.SetShadows(true, true)
	}
	fixMaterials(root)
}

func scaleModel(root *scene.Group, targetSize float32) {
	box, ok := scene.BoundingBox(root)
	if !ok {
		return
	}
	size := box.Max.Sub(box.Min)
	maxDim := math32.Max(size.X, math32.Max(size.Y, size.Z))
	if maxDim > 0 {
		root.Transform.SetScale(math.NewVec3Scalar(targetSize / maxDim))
	}
}

func centerModel(root *scene.Group) {
	box, ok := scene.BoundingBox(root)
	if !ok {
		return
	}
	center := box.Min.Add(box.Max).MulScalar(0.5)
	root.Transform.SetPosition(root.Transform.Position.Sub(center))
}

func fixMaterials(root *scene.Group) {
	root.Traverse(func(n scene.Node) {
		if m, ok := n.(*scene.Mesh); ok && m.Material == nil {
			m.Material = scene.NewLambertMaterial(math.NewColourFromHex(defaultMaterialColour))
		}
	})
}

/**
 * @brief Counts meshes, distinct materials, triangles and distinct
 * texture references below root. Triangles follow the scene counting
 * rule: index count / 3 or position count / 3, floored once.
 */
func ExtractStatistics(root scene.Node, animationCount int) ModelStatistics {
	stats := ModelStatistics{
		TriangleCount:  scene.CountTriangles(root),
		HasAnimations:  animationCount > 0,
		AnimationCount: animationCount,
	}
	if root == nil {
		return stats
	}
	materials := map[*scene.Material]bool{}
	textures := map[string]bool{}
	visit := func(n scene.Node) {
		m, ok := n.(*scene.Mesh)
		if !ok {
			return
		}
		stats.MeshCount++
		if m.Material != nil && !materials[m.Material] {
			materials[m.Material] = true
			for _, t := range m.Material.Textures {
				textures[t] = true
			}
		}
	}
	visit(root)
	root.Base().Traverse(visit)
	stats.MaterialCount = len(materials)
	stats.TextureCount = len(textures)
	return stats
}
