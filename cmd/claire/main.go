// Command claire runs the Claire reading assistant server and its command
// line helpers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "claire:", err)
		os.Exit(1)
	}
}
