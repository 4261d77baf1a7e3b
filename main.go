package main

import (
	"fmt"
	"os"

	"github.com/mdlincoln/magick-tile/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "magick-tile: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
