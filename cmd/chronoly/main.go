// Command chronoly runs the time-tracking web app, its export worker and a few
// maintenance tools.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
