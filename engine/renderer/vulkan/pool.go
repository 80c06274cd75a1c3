package vulkan

import "sync"

type LockGroup string

const (
	RenderpassManagement  LockGroup = "renderpass_management"
	PipelineManagement    LockGroup = "pipeline_management"
	FramebufferManagement LockGroup = "framebuffer_management"
	ShaderManagement      LockGroup = "shader_management"
	DeviceManagement      LockGroup = "device_management"
)

// VulkanLockPool hands out one mutex per lock group so that creation and
// destruction of objects of the same family are serialized.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

// Get or create the mutex of a group. The map lock is released before the
// group lock is taken so a busy group never blocks the others.
func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	l, exists := vs.locks[group]
	if !exists {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	vs.mu.Unlock()

	l.Lock()
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	defer l.Unlock()

	return fn()
}
