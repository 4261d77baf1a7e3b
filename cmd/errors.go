package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// ArgError reports a bad command line: a missing or unreadable SOURCE, an
// OUTPUT that is not a directory, an out-of-range flag or an unparsable
// config. It maps to exit code 2.
type ArgError struct {
	Err error
}

func (e *ArgError) Error() string { return e.Err.Error() }

func (e *ArgError) Unwrap() error { return e.Err }

func argErrorf(err error) error {
	if err == nil {
		return nil
	}
	return &ArgError{Err: err}
}

// exactArgs is cobra.ExactArgs with the error reported as an ArgError.
func exactArgs(n int) cobra.PositionalArgs {
	check := cobra.ExactArgs(n)
	return func(c *cobra.Command, args []string) error {
		return argErrorf(check(c, args))
	}
}

// ExitCode maps an Execute error to the process exit status.
func ExitCode(err error) int {
	var argErr *ArgError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &argErr):
		return 2
	default:
		return 1
	}
}
