package assets

import (
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/prism/engine/assets/loaders"
)

type Format string

const (
	FormatNone Format = ""
	FormatGLTF Format = "gltf"
	FormatGLB  Format = "glb"
	FormatOBJ  Format = "obj"
	FormatFBX  Format = "fbx"
)

/** @brief Describes a model format accepted by the loader. */
type FormatInfo struct {
	Extension   string
	Name        string
	Description string
}

var supportedFormats = []FormatInfo{
	{Extension: "gltf", Name: "glTF 2.0", Description: "Recommended, carries animations and materials"},
	{Extension: "glb", Name: "glTF Binary", Description: "Binary glTF, smaller files"},
	{Extension: "obj", Name: "Wavefront OBJ", Description: "Common format, geometry and .mtl colours only"},
	{Extension: "fbx", Name: "Autodesk FBX", Description: "Binary FBX, carries animations, larger files"},
}

// SupportedFormats lists the accepted model formats.
func SupportedFormats() []FormatInfo {
	out := make([]FormatInfo, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// FormatOf maps a file name to its format by extension, case insensitively.
func FormatOf(name string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "gltf":
		return FormatGLTF
	case "glb":
		return FormatGLB
	case "obj":
		return FormatOBJ
	case "fbx":
		return FormatFBX
	}
	return FormatNone
}

func defaultLoaders() map[Format]loaders.ModelLoader {
	gltf := &loaders.GLTFLoader{}
	return map[Format]loaders.ModelLoader{
		FormatGLTF: gltf,
		FormatGLB:  gltf,
		FormatOBJ:  &loaders.OBJLoader{},
		FormatFBX:  &loaders.FBXLoader{},
	}
}
