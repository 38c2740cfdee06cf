package loaders

import (
	"fmt"
	"path/filepath"
	"strings"
)

type ShaderResource struct {
	Name     string
	FullPath string
	Code     []uint32
}

// ShaderLoader reads compiled compute kernels (.spv).
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (*ShaderResource, error) {
	data, err := readBinary(path)
	if err != nil {
		return nil, err
	}
	code, err := bytesToBytecode(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return &ShaderResource{
		Name:     ShaderName(path),
		FullPath: path,
		Code:     code,
	}, nil
}

// ShaderName is the file name without directory and .spv extension.
func ShaderName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
