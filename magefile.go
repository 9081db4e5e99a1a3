//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
var Default = Build

func Build() error {
	mg.Deps(BuildTconst)
	fmt.Println("Compilation finished")
	return nil
}

// cgoCommand runs go with the HDF5 flags taken from the environment.
func cgoCommand(args ...string) *exec.Cmd {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

func BuildTconst() error {
	fmt.Println("Building tconst executable...")
	return cgoCommand("build", "-o", "./bin/tconst", "./tconst").Run()
}

// Test runs the unit tests of the HDF5 free packages.
func Test() error {
	fmt.Println("Running tests...")
	return cgoCommand("test", "./pkg", "./pkg/store").Run()
}

// TestAll also runs the command tests, which link against libhdf5.
func TestAll() error {
	mg.Deps(Test)
	return cgoCommand("test", "./tconst").Run()
}
