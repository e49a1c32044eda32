// Package main provides jsonmakerctl, an admin tool that works on the tree
// store directly. Stop the server before running commands that write.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
