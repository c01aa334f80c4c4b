// "deadman" drives dead man's switches against a local store and ledger.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "deadman failed %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
