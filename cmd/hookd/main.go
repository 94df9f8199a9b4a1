package main

import (
	"os"

	"github.com/despachantemarcelino/hookd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
