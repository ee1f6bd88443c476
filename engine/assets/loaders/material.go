package loaders

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

/**
 * @brief Parses a Wavefront material library (.mtl). Every material becomes
 * a phong material; texture maps are recorded by name only.
 */
func parseMTL(r io.Reader) (map[string]*scene.Material, error) {
	scanner := bufio.NewScanner(r)
	materials := make(map[string]*scene.Material)
	var current *scene.Material

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		fields := strings.Fields(line)
		key, values := fields[0], fields[1:]

		if key == "newmtl" {
			if len(values) < 1 {
				return nil, errors.Wrapf(ErrMalformedModel, "mtl line %d: newmtl without a name", lineNo)
			}
			current = scene.NewPhongMaterial(math.NewColourFromHex(0xA0A0A0), 0x808080, 30)
			current.Name = values[0]
			materials[current.Name] = current
			continue
		}
		if current == nil {
			core.LogWarn("mtl line %d: '%s' before any newmtl. Skipping...", lineNo, key)
			continue
		}

		switch key {
		case "Kd":
			c, err := parseColour(values)
			if err != nil {
				return nil, errors.Wrapf(err, "mtl line %d", lineNo)
			}
			current.Color = c
		case "Ks":
			c, err := parseColour(values)
			if err != nil {
				return nil, errors.Wrapf(err, "mtl line %d", lineNo)
			}
			current.Specular = c
		case "Ns":
			v, err := parseFloat(values)
			if err != nil {
				return nil, errors.Wrapf(err, "mtl line %d", lineNo)
			}
			current.Shininess = v
		case "d", "Tr":
			v, err := parseFloat(values)
			if err != nil {
				return nil, errors.Wrapf(err, "mtl line %d", lineNo)
			}
			if key == "Tr" {
				v = 1 - v
			}
			current.Opacity = math.Clamp(v, 0, 1)
			current.Transparent = current.Opacity < 1
		case "map_Kd", "map_Ks", "map_Bump", "map_bump", "bump", "map_d":
			if len(values) > 0 {
				// Options such as -s precede the file name.
				current.Textures = append(current.Textures, strings.ToLower(key)+":"+values[len(values)-1])
			}
		default:
			core.LogDebug("mtl line %d: unsupported key '%s'", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read material library")
	}
	return materials, nil
}

func parseFloat(values []string) (float32, error) {
	if len(values) < 1 {
		return 0, errors.Wrap(ErrMalformedModel, "missing value")
	}
	f, err := strconv.ParseFloat(values[0], 32)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedModel, "invalid value '%s'", values[0])
	}
	return float32(f), nil
}

func parseColour(values []string) (math.Vec4, error) {
	if len(values) < 3 {
		return math.Vec4{}, errors.Wrapf(ErrMalformedModel, "expected 3 colour values, got %d", len(values))
	}
	var rgb [3]float32
	for i := range rgb {
		f, err := strconv.ParseFloat(values[i], 32)
		if err != nil {
			return math.Vec4{}, errors.Wrapf(ErrMalformedModel, "invalid colour value '%s'", values[i])
		}
		rgb[i] = float32(f)
	}
	return math.NewVec4(rgb[0], rgb[1], rgb[2], 1), nil
}
