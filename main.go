// Package main provides the entry point for hexdbt.
// hexdbt is a packet-level Hexagon binary translator.
//
// For the full CLI, use: go run ./cmd/hexdbt
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("hexdbt - packet-level Hexagon binary translator")
	fmt.Println("")
	fmt.Println("Usage: hexdbt <command> [options] <program>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  translate  Translate blocks and print their packets")
	fmt.Println("  run        Run a guest program")
	fmt.Println("  config     Inspect translator configuration files")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/hexdbt' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/hexdbt' instead.")
	}
}
