// Package main is the entry point for the hlsarchiver application.
package main

import (
	"os"

	"github.com/jmylchreest/hlsarchiver/cmd/hlsarchiver/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
