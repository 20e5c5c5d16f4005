// Package main is the entry point of the savestate command.
package main

import "github.com/sarchlab/savestate/savestate/cmd"

func main() {
	cmd.Execute()
}
