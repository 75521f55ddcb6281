package main

import (
	"os"

	"github.com/lueurxax/feedpulse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
