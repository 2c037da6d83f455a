// Command luftscan runs collapse-criterion parameter scans, analyses their
// exports and serves the scan API.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
