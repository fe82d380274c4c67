// The main package for the meting-gateway executable.
package main

import (
	"github.com/JakeFAU/meting-gateway/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
