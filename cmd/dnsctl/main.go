package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	cmd := newRootCmd(&app{out: os.Stdout})
	if err := cmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
