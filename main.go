/*
Sample application driving the engine with the testbed game: an animated clear
colour, ESC to quit and V to toggle vsync.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/vkwrap/engine"
	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/spaghettifunk/vkwrap/testbed"
)

const configPath = "vkwrap.toml"

func main() {
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}

	e, err := engine.New(cfg, configPath, testbed.NewTestGame().Game)
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("initialization failed: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		// GPU objects belong to the main thread, so only ask the loop to stop.
		e.Stop()
	}()

	if err := e.Run(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("fatal: %s", err)
	}

	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
		os.Exit(1)
	}
}
