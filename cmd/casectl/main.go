package main

import (
	"fmt"
	"os"

	"github.com/tensai-22/penal-sub001/cmd/casectl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
