//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every test of the module.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-count=1", "./..."), withStream())
	return err
}

// Runs the GPU-free frame loop tests with the race detector.
func (Test) Frame() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./renderer/frame/..."), withDir("engine"), withStream())
	return err
}
