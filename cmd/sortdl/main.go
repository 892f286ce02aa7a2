package main

import (
	"os"

	"github.com/solatis/sortdl/cmd/sortdl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
