// Package source picks a scene loader by file extension.
package source

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/source/gltfsrc"
	"github.com/mogaika/xsg_export/source/yamlsrc"
)

type Loader func(path string) (*scene.Scene, error)

var loaders = map[string]Loader{
	".gltf": gltfsrc.Load,
	".glb":  gltfsrc.Load,
	".yaml": yamlsrc.Load,
	".yml":  yamlsrc.Load,
}

// Extensions lists the supported source extensions.
func Extensions() []string {
	result := make([]string, 0, len(loaders))
	for ext := range loaders {
		result = append(result, ext)
	}
	sort.Strings(result)
	return result
}

// Supported reports whether path has a known scene extension.
func Supported(path string) bool {
	_, ok := loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Open loads the scene at path.
func Open(path string) (*scene.Scene, error) {
	ext := strings.ToLower(filepath.Ext(path))
	load, ok := loaders[ext]
	if !ok {
		return nil, errors.Errorf("Unknown scene format %q (supported: %s)", ext, strings.Join(Extensions(), ", "))
	}
	return load(path)
}
