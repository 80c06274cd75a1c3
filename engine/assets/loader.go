package assets

import "github.com/spaghettifunk/passgraph/engine/assets/loaders"

type Loader interface {
	Load(path string) (*loaders.Resource, error)
	Unload(*loaders.Resource) error
}

var (
	_ Loader = (*loaders.PassLoader)(nil)
	_ Loader = (*loaders.ShaderLoader)(nil)
)
