// Command envcheck fails a deploy early when required variables are unset.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/morningai/morningai/internal/envcheck"
)

func main() {
	cmd := envcheck.NewCommand("envcheck")
	if err := cmd.Execute(); err != nil {
		var exitErr *envcheck.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
