package driven

import "context"

// CommandRunner executes external extraction tools. Enrichers depend on
// this interface rather than os/exec so tests can substitute a double.
type CommandRunner interface {
	// Run executes the named tool and returns its standard output.
	// The context bounds the run; when it expires the tool is stopped
	// and Run returns an error.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Available reports whether the named tool is on PATH.
	Available(name string) bool
}
