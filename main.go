// The main package for the calisblog executable.
package main

import (
	"os"

	"github.com/Imziyasser00/calis-blog-sub001/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
