// Package main is the entry point for statectl, the operator tool for
// inspecting and approving tenant test automation state.
package main

import (
	"os"

	"github.com/lyzr/teststate/cmd/statectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
