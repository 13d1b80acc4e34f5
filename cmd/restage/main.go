// Command restage runs McCode parameter scans with a cached upstream half.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/restage/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report wrapped failures themselves; bare exit errors and
	// cobra's own usage errors are printed here.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	if exitErr.Err == nil {
		fmt.Fprintln(os.Stderr, "Error:", exitErr.Message)
	}
	os.Exit(exitErr.Code)
}
