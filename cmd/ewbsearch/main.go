// Package main provides the entry point for the ewbsearch CLI.
package main

import (
	"os"

	"github.com/IntelCompH2020/ewbsearch/cmd/ewbsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
