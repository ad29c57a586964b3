package main

import (
	"os"

	"github.com/Carmen-Shannon/oxy-copy/cmd/oxycopy/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
