//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds and runs the sample application against vkwrap.toml.
func (Run) Engine() error {
	mg.Deps(Build.Engine)
	fmt.Println("Run engine...")
	if _, err := executeCmd("./bin/vkwrap", withStream()); err != nil {
		return err
	}
	return nil
}
