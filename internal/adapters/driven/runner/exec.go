// Package runner provides the os/exec-backed CommandRunner used by
// enrichment stages to drive external extraction tools (pdftotext,
// pdfinfo, pdftoppm, tesseract, ffmpeg).
package runner

import (
	"context"
	"os/exec"

	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure Exec implements the interface.
var _ driven.CommandRunner = (*Exec)(nil)

// Exec runs tools found on PATH.
type Exec struct{}

// New creates an Exec runner.
func New() *Exec {
	return &Exec{}
}

// Run executes the named tool and returns its stdout. The context
// bounds the run; the process is killed when the deadline passes.
func (e *Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Available reports whether the named tool is on PATH.
func (e *Exec) Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
