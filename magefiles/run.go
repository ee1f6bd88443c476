//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs a benchmark session of the given tier (basic, medium or stress).
func (Run) Bench(tier string) error {
	fmt.Printf("Run %s benchmark...\n", tier)
	if _, err := executeCmd("go", withArgs("run", "main.go", "bench", "--tier", tier), withStream()); err != nil {
		return err
	}
	return nil
}

// Opens a model in the headless viewer and writes the last frame to snapshot.png.
func (Run) View(model string) error {
	fmt.Println("Run viewer...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "view", model, "--snapshot", "snapshot.png"), withStream()); err != nil {
		return err
	}
	return nil
}
