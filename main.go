// Package main is the entry point for the vsxc CLI.
package main

import "github.com/wufan123/vs-ex-compress/cmd"

func main() {
	cmd.Execute()
}
