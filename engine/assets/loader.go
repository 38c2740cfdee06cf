package assets

import "github.com/spaghettifunk/voxelray/engine/assets/loaders"

type Loader interface {
	Load(path string) (*loaders.ShaderResource, error)
}
