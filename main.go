// The main package for the logoresolver executable.
package main

import (
	"github.com/JakeFAU/logo-resolver/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
