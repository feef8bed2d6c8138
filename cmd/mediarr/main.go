// Package main is the entry point for the mediarr application.
package main

import (
	"os"

	"github.com/reybeld94/mediarr/cmd/mediarr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
