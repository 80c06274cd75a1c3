package loaders

type ResourceType int

/** @brief Resource types known to the asset manager. */
const (
	/** @brief Files the asset manager ignores. */
	ResourceTypeNone ResourceType = iota
	/** @brief A render pass description (.pass.toml or .pass.hcl). */
	ResourceTypePass
	/** @brief A shader, WGSL source or SPIR-V binary. */
	ResourceTypeShader
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypePass:
		return "pass"
	case ResourceTypeShader:
		return "shader"
	}
	return "none"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The resource type, selects the loader. */
	Type ResourceType
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the file the resource was read from, in bytes. */
	DataSize uint64
	/** @brief The resource data, *PassDescription or *ShaderCode. */
	Data interface{}
}
