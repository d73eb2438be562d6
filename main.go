// The main package for the autocrawl executable.
package main

import (
	"github.com/avkatev/autocrawl/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
