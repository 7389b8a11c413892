// Command phri computes Personal Health Risk Index scores from the command
// line against the built-in or a custom scale table.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// Exit codes.
const (
	exitFailure = 1
	exitInvalid = 2
)

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "phri",
		Short:         "Compute personal health risk scores for dust exposure",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)

	var tablePath string
	root.PersistentFlags().StringVar(&tablePath, "table", "", "Scale table YAML (default: built-in)")

	root.AddCommand(newComputeCmd(&tablePath), newScalesCmd(&tablePath))
	return root
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(report(os.Stderr, err))
	}
}

// report prints err and returns the process exit code for it.
func report(w io.Writer, err error) int {
	var ee *exitErr
	if errors.As(err, &ee) {
		fmt.Fprintln(w, ee.msg)
		return ee.code
	}
	fmt.Fprintln(w, err)
	return exitFailure
}
