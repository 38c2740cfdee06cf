//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// kernels are compiled next to their sources, the engine loads them by name at startup.
var kernels = []string{"shaders/raytrace.comp", "shaders/generate.comp"}

// Compiles the compute kernels to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	return goCmd("build", "-o", "bin/voxelray", ".")
}

func buildShaders() error {
	for _, src := range kernels {
		if err := compileKernel(src); err != nil {
			return err
		}
	}
	return nil
}
