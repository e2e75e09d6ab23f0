// Package main is the entry point for telegramd.
package main

import (
	"os"

	"github.com/scalytics/telegramd/cmd/telegramd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
