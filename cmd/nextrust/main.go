// Package main is the entry point for the nextrust CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nextrust: %v\n", err)
		os.Exit(1)
	}
}
