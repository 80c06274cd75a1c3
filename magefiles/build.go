//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the passgraph binary into bin/.
func (Build) Binary() error {
	if _, err := executeCmd("go", withArgs("mod", "download")); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", "bin/passgraph", "."), withStream())
	return err
}
