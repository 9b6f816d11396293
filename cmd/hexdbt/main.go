// Package main provides the hexdbt command line tool.
//
// hexdbt translates Hexagon packets into IR and runs guest programs on the
// reference backend.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
