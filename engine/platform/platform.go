package platform

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/passgraph/engine/core"
)

func init() {
	// GLFW calls must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the GLFW library, used here only to locate the Vulkan loader.
// No window is created; render passes are compiled headless.
type Platform struct {
	started bool
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup() error {
	if p.started {
		return nil
	}
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return errors.Wrap(err, "failed to initialize glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("no Vulkan loader found")
	}
	p.started = true
	return nil
}

// VulkanProcAddr returns vkGetInstanceProcAddr of the system loader.
func (p *Platform) VulkanProcAddr() (unsafe.Pointer, error) {
	if !p.started {
		return nil, errors.New("platform not started")
	}
	return glfw.GetVulkanGetInstanceProcAddress(), nil
}

func (p *Platform) Shutdown() error {
	if p.started {
		glfw.Terminate()
		p.started = false
	}
	return nil
}
