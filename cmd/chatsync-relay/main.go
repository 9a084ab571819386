// Package main provides the development chat relay for chatsync clients.
package main

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/chatsync/internal/cli"
)

func main() {
	if err := cli.ExecuteRelay(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
