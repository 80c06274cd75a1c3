//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Plans every pass description of the testbed.
func (Run) Plan() error {
	passes, err := testbedPasses()
	if err != nil {
		return err
	}
	_, err = executeCmd("go", withArgs(append([]string{"run", ".", "-config", "testbed/passgraph.toml", "plan"}, passes...)...), withStream())
	return err
}

// Compiles every pass description of the testbed on the Vulkan device.
func (Run) Compile() error {
	mg.Deps(Build.Binary)
	passes, err := testbedPasses()
	if err != nil {
		return err
	}
	_, err = executeCmd("bin/passgraph", withArgs(append([]string{"-config", "testbed/passgraph.toml", "compile"}, passes...)...), withStream())
	return err
}

// Watches the testbed and re-plans passes as they change.
func (Run) Watch() error {
	fmt.Println("Watching testbed, interrupt to stop...")
	_, err := executeCmd("go", withArgs("run", ".", "-config", "testbed/passgraph.toml", "watch"), withStream())
	return err
}

func testbedPasses() ([]string, error) {
	var passes []string
	for _, pattern := range []string{"testbed/*.pass.toml", "testbed/*.pass.hcl"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		passes = append(passes, matches...)
	}
	if len(passes) == 0 {
		return nil, fmt.Errorf("no pass descriptions in testbed")
	}
	return passes, nil
}
