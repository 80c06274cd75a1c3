package vulkan

import (
	vk "github.com/goki/vulkan"
)

// ExternalDependency synchronizes a subpass with work outside the render pass.
// Used as a pre-dependency the source scope is the prior work; used as a
// post-dependency the destination scope is the following work.
type ExternalDependency struct {
	SrcStageMask  vk.PipelineStageFlags
	DstStageMask  vk.PipelineStageFlags
	SrcAccessMask vk.AccessFlags
	DstAccessMask vk.AccessFlags
	Flags         vk.DependencyFlags
}

// Dependency is one edge of the render pass dependency list. Src or Dst is
// vk.SubpassExternal for edges crossing the pass boundary.
type Dependency struct {
	Src           uint32
	Dst           uint32
	SrcStageMask  vk.PipelineStageFlags
	DstStageMask  vk.PipelineStageFlags
	SrcAccessMask vk.AccessFlags
	DstAccessMask vk.AccessFlags
	Flags         vk.DependencyFlags
}

// IsExternal reports whether the edge crosses the render pass boundary.
func (d Dependency) IsExternal() bool {
	return d.Src == vk.SubpassExternal || d.Dst == vk.SubpassExternal
}

func (d Dependency) vulkan() vk.SubpassDependency {
	return vk.SubpassDependency{
		SrcSubpass:      d.Src,
		DstSubpass:      d.Dst,
		SrcStageMask:    d.SrcStageMask,
		DstStageMask:    d.DstStageMask,
		SrcAccessMask:   d.SrcAccessMask,
		DstAccessMask:   d.DstAccessMask,
		DependencyFlags: d.Flags,
	}
}

// ResolveDependencies returns the dependency list of a render pass: the
// declared external dependencies of every subpass, in subpass order, followed
// by the dependencies inferred from the access matrix.
func ResolveDependencies(matrix *AccessMatrix, subpasses []SubpassDescription) []Dependency {
	var dependencies []Dependency

	for s, subpass := range subpasses {
		for _, pre := range subpass.PreDependencies {
			dependencies = append(dependencies, pre.edge(vk.SubpassExternal, uint32(s)))
		}
		for _, post := range subpass.PostDependencies {
			dependencies = append(dependencies, post.edge(uint32(s), vk.SubpassExternal))
		}
	}

	return append(dependencies, inferDependencies(matrix)...)
}

func (e ExternalDependency) edge(src, dst uint32) Dependency {
	return Dependency{
		Src:           src,
		Dst:           dst,
		SrcStageMask:  e.SrcStageMask,
		DstStageMask:  e.DstStageMask,
		SrcAccessMask: e.SrcAccessMask,
		DstAccessMask: e.DstAccessMask,
		Flags:         e.Flags,
	}
}

// inferDependencies emits one by-region edge wherever the access kind of an
// attachment changes between two consecutive subpasses that use it.
func inferDependencies(matrix *AccessMatrix) []Dependency {
	var dependencies []Dependency
	for i := 0; i < matrix.AttachmentCount(); i++ {
		last, lastKind := -1, AccessUnused
		for s := 0; s < matrix.SubpassCount(); s++ {
			kind := matrix.At(i, s)
			if kind == AccessUnused {
				continue
			}
			if last >= 0 && kind != lastKind {
				dependencies = append(dependencies, Dependency{
					Src:           uint32(last),
					Dst:           uint32(s),
					SrcStageMask:  lastKind.StageMask(),
					DstStageMask:  kind.StageMask(),
					SrcAccessMask: lastKind.AccessMask(),
					DstAccessMask: kind.AccessMask(),
					Flags:         vk.DependencyFlags(vk.DependencyByRegionBit),
				})
			}
			last, lastKind = s, kind
		}
	}
	return dependencies
}
