package main

import (
	"os"

	"github.com/sanasol-ws/dualauth/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
