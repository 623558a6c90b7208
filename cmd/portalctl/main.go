// Package main is the entry point for portalctl, a command-line client for
// the vendor risk portal that keeps a conditional cache of fetched views.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
