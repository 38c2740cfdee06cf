//go:build mage

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

// glslc flags shared by every kernel. Vulkan 1.2 is what the engine requests.
var glslcFlags = []string{"--target-env=vulkan1.2", "-O"}

func spvPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".spv"
}

// compileKernel runs glslc on src unless its .spv is already newer.
func compileKernel(src string) error {
	out := spvPath(src)
	stale, err := target.Path(out, src)
	if err != nil {
		return fmt.Errorf("checking %s: %w", out, err)
	}
	if !stale {
		if mg.Verbose() {
			fmt.Printf("%s is up to date\n", out)
		}
		return nil
	}
	args := append(append([]string{}, glslcFlags...), src, "-o", out)
	return sh.RunV("glslc", args...)
}

// goCmd runs the go tool with cgo on, glfw needs it.
func goCmd(args ...string) error {
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, mg.GoCmd(), args...)
}
