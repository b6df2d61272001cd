// Command mchroma picks and integrates peaks in chromatogram detector exports.
package main

import (
	"fmt"
	"io"
	"os"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

// cli runs the command tree on args and returns the process exit code.
func cli(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if _, werr := fmt.Fprintf(stderr, "mchroma: %v\n", err); werr != nil {
			return 1
		}
		return 1
	}
	return 0
}
