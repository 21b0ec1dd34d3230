// txprep prepares Soroban contract invocations for signing.
//
// Usage:
//
//	txprep invoke <function> [type:value ...] --source G... --contract C...
//	txprep serve                                Run the JSON-RPC server
//	txprep --help                               Show help
package main

import (
	"fmt"
	"os"

	"github.com/reflector-network/txprep/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
