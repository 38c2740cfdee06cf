//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the kernels and runs the engine with voxelray.toml.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	return goCmd("run", ".", "-config", "voxelray.toml")
}

// Runs the unit tests, none of which need a GPU.
func (Run) Tests() error {
	return goCmd("test", "./...")
}
