/*
voxelray renders a chunked voxel world by ray marching it in a compute shader straight
into the swapchain images.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/voxelray/engine"
	"github.com/spaghettifunk/voxelray/engine/core"
)

func main() {
	configPath := flag.String("config", "voxelray.toml", "path to the TOML configuration")
	flag.Parse()

	config, err := engine.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("Invalid configuration: %s", err)
	}

	e, err := engine.New(config)
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("%s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the render loop owns the device, a signal only asks it to stop
	go func() {
		<-sigCh
		core.LogInfo("Signal received, shutting down.")
		e.Stop()
	}()

	runErr := e.Run()
	shutdownErr := e.Shutdown()
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
	if shutdownErr != nil {
		core.LogFatal("%s", shutdownErr)
	}
}
