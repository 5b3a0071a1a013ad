package main

import (
	"os"

	"github.com/royalclubcanada/dropin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
