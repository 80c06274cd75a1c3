package vulkan

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/naga"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/core"
	"golang.org/x/sync/errgroup"
)

const spirvMagic uint32 = 0x07230203

/**
 * @brief A single shader stage whose module is loaded in the background.
 */
type Shader struct {
	/** @brief The file the module is loaded from. */
	Path string
	/** @brief The pipeline stage the module runs in. */
	Stage vk.ShaderStageFlagBits
	/** @brief The entry point name, "main" unless set otherwise. */
	EntryPoint string

	device Device
	module vk.ShaderModule
	err    error
	done   chan struct{}

	destroyOnce sync.Once
}

// NewShader starts loading the module at path. Files ending in .spv are used
// as SPIR-V binaries, anything else is compiled from WGSL. Use Wait to join
// the load.
func NewShader(device Device, stage vk.ShaderStageFlagBits, path string, entryPoint string) *Shader {
	if entryPoint == "" {
		entryPoint = "main"
	}
	s := &Shader{
		Path:       path,
		Stage:      stage,
		EntryPoint: entryPoint,
		device:     device,
		done:       make(chan struct{}),
	}
	go s.load()
	return s
}

func (s *Shader) load() {
	defer close(s.done)

	code, err := LoadShaderCode(s.Path)
	if err != nil {
		s.err = err
		return
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	module, err := s.device.CreateShaderModule(&info)
	if err != nil {
		s.err = errors.Wrapf(err, "shader %s", s.Path)
		return
	}
	s.module = module
	core.LogDebug("shader module %s loaded (%d words)", s.Path, len(code))
}

// Ready reports whether the load has finished, successfully or not.
func (s *Shader) Ready() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the module is loaded and returns the load error, if any.
func (s *Shader) Wait() error {
	<-s.done
	return s.err
}

// StageInfo waits for the module and returns the shader stage description
// used by pipeline creation.
func (s *Shader) StageInfo() (vk.PipelineShaderStageCreateInfo, error) {
	if err := s.Wait(); err != nil {
		return vk.PipelineShaderStageCreateInfo{}, err
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  s.Stage,
		Module: s.module,
		PName:  VulkanSafeString(s.EntryPoint),
	}, nil
}

// Destroy waits for the load and releases the module.
func (s *Shader) Destroy() {
	s.destroyOnce.Do(func() {
		<-s.done
		if s.module != nil {
			s.device.DestroyShaderModule(s.module)
			s.module = nil
		}
	})
}

// WaitShaders joins the loads of all shaders and returns the first failure.
func WaitShaders(shaders ...*Shader) error {
	var group errgroup.Group
	for _, shader := range shaders {
		group.Go(shader.Wait)
	}
	return group.Wait()
}

// LoadShaderCode reads a shader file and returns its SPIR-V words.
func LoadShaderCode(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading shader %s", path), core.ErrConfig)
	}
	if strings.EqualFold(filepath.Ext(path), ".spv") {
		return DecodeSPIRV(data)
	}
	code, err := CompileWGSL(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	return code, nil
}

// DecodeSPIRV converts a little-endian SPIR-V binary into words.
func DecodeSPIRV(data []byte) ([]uint32, error) {
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, core.ConfigErrorf("SPIR-V binary size %d is not a positive multiple of 4", len(data))
	}
	code := make([]uint32, len(data)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if code[0] != spirvMagic {
		return nil, core.ConfigErrorf("not a SPIR-V binary: magic number 0x%08x", code[0])
	}
	return code, nil
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, core.ConfigErrorf("failed to compile shader: %v", err)
	}
	return DecodeSPIRV(spirv)
}
