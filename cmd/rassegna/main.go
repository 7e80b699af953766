// Package main provides the entry point for the rassegna CLI.
package main

import (
	"os"

	"github.com/balkanpress/rassegna/cmd/rassegna/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
