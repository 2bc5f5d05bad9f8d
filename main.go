// main.go
//
// Entry point; CLI handling lives in the Cobra commands under cmd/

package main

import (
	"github.com/lattice-sim/lattice-sim/cmd"
)

func main() {
	cmd.Execute()
}
