// Command shellmaster is a non-interactive demo CLI exercising the full
// session runtime: connect, list a remote directory, transfer a file in
// either direction, and run a remote command.
package main

import (
	"fmt"
	"os"

	"github.com/iwoov/shellmaster/internal/logging"
)

func main() {
	logging.Configure("info", true)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
