package loaders

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/passgraph/engine/core"
	"github.com/spaghettifunk/passgraph/engine/renderer/vulkan"
)

/** @brief SPIR-V words of a loaded shader. */
type ShaderCode struct {
	Words []uint32
}

// IsShaderFile reports whether path names WGSL source or a SPIR-V binary.
func IsShaderFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wgsl", ".spv":
		return true
	}
	return false
}

// ShaderLoader reads a shader and compiles it to SPIR-V without a device.
// The asset manager uses it to report broken shaders as soon as they change.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (*Resource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading shader %s", path), core.ErrConfig)
	}
	code, err := vulkan.LoadShaderCode(path)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Type:     ResourceTypeShader,
		Name:     filepath.Base(path),
		FullPath: path,
		DataSize: uint64(info.Size()),
		Data:     &ShaderCode{Words: code},
	}, nil
}

func (sl *ShaderLoader) Unload(*Resource) error {
	return nil
}
