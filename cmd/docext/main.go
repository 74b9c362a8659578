package main

import (
	"os"

	"github.com/MeKo-Tech/docext/cmd/docext/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
