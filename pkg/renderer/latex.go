// Package renderer compiles LaTeX sources into PDF with an external typesetting binary.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikogura/cv-generator/pkg/session"
	"github.com/pkg/errors"
)

// Reason explains why a compilation produced no PDF.
type Reason string

// Compilation outcome reasons.
const (
	ReasonNone          Reason = ""
	ReasonSkipped       Reason = "skipped"
	ReasonExitStatus    Reason = "exit-status"
	ReasonMissingOutput Reason = "missing-output"
	ReasonTimeout       Reason = "timeout"
	ReasonInvocation    Reason = "invocation"
)

// DefaultTimeout bounds a single compiler run.
const DefaultTimeout = 30 * time.Second

// waitDelay bounds how long output pipes may stay open after the compiler is killed.
const waitDelay = 2 * time.Second

// Outcome describes a compilation attempt. Failures are reported here, never as errors.
type Outcome struct {
	Success    bool
	OutputPath string
	LogPath    string
	Reason     Reason
	Duration   time.Duration
}

// Options configure a Compiler.
type Options struct {
	Binary   string
	Timeout  time.Duration
	Disabled bool
	Logger   *slog.Logger
}

// Compiler runs the typesetting binary. Its availability is probed once at
// construction and never changes afterwards.
type Compiler struct {
	binary  string
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// DetectCompiler looks binary up in the executable search path.
func DetectCompiler(binary string) (path string, available bool) {
	var err error
	path, err = exec.LookPath(binary)
	if err != nil {
		path = ""
		return path, available
	}

	available = true
	return path, available
}

// NewCompiler probes for the binary and returns an immutable compiler value.
func NewCompiler(opts Options) (compiler *Compiler) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	compiler = &Compiler{
		binary:  opts.Binary,
		timeout: timeout,
		logger:  logger,
	}

	if opts.Disabled {
		logger.Info("PDF compilation disabled by configuration", "binary", opts.Binary)
		return compiler
	}

	path, available := DetectCompiler(opts.Binary)
	compiler.path = path
	logger.Info("compiler probe", "binary", opts.Binary, "available", available, "path", path)

	return compiler
}

// Available reports whether compilation will be attempted.
func (c *Compiler) Available() (available bool) {
	available = c.path != ""
	return available
}

// Binary returns the configured binary name.
func (c *Compiler) Binary() (binary string) {
	binary = c.binary
	return binary
}

// Timeout returns the bound on a single run.
func (c *Compiler) Timeout() (timeout time.Duration) {
	timeout = c.timeout
	return timeout
}

// Compile typesets sourcePath into outputDir. Every failure mode (non-zero
// exit, missing output, timeout, invocation error) writes a diagnostic log
// into outputDir and returns Success=false.
func (c *Compiler) Compile(ctx context.Context, sourcePath, outputDir string) (outcome Outcome) {
	if !c.Available() {
		outcome.Reason = ReasonSkipped
		return outcome
	}

	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	expected := filepath.Join(outputDir, stem+".pdf")
	logPath := filepath.Join(outputDir, session.LogFile)

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.path,
		"-interaction=nonstopmode",
		"-output-directory", outputDir,
		sourcePath,
	)
	isolateProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	outcome.Duration = time.Since(start)

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		outcome.Reason = ReasonTimeout
		runErr = errors.Errorf("compilation timed out after %s", c.timeout)
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && exitErr.ExitCode() > 0 {
			outcome.Reason = ReasonExitStatus
		} else {
			outcome.Reason = ReasonInvocation
		}
	default:
		_, statErr := os.Stat(expected)
		if statErr != nil {
			outcome.Reason = ReasonMissingOutput
			runErr = errors.Errorf("expected output not found: %s", expected)
		}
	}

	if outcome.Reason != ReasonNone {
		c.logger.Warn("compilation failed, continuing without PDF",
			"source", sourcePath,
			"reason", string(outcome.Reason),
			"error", runErr,
			"duration", outcome.Duration)

		// A failed run may still leave a partial PDF behind; it must not be served.
		rmErr := os.Remove(expected)
		if rmErr != nil && !os.IsNotExist(rmErr) {
			c.logger.Error("failed to remove partial output", "path", expected, "error", rmErr)
		}

		logErr := writeLog(logPath, outcome.Reason, runErr, stdout.String(), stderr.String())
		if logErr != nil {
			c.logger.Error("failed to write compiler log", "path", logPath, "error", logErr)
		} else {
			outcome.LogPath = logPath
		}
		return outcome
	}

	outcome.Success = true
	outcome.OutputPath = expected
	c.logger.Info("compilation succeeded", "output", expected, "duration", outcome.Duration)

	return outcome
}

// writeLog records the compiler's output for later inspection.
func writeLog(path string, reason Reason, runErr error, stdout, stderr string) (err error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "REASON: %s\n", reason)
	if runErr != nil {
		fmt.Fprintf(&sb, "ERROR: %v\n", runErr)
	}
	fmt.Fprintf(&sb, "\nSTDOUT:\n%s\n\nSTDERR:\n%s", stdout, stderr)

	err = os.WriteFile(path, []byte(sb.String()), 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write compiler log: %s", path)
		return err
	}
	return err
}

// WriteSource writes document content to a file.
func WriteSource(content, outputPath string) (err error) {
	err = os.WriteFile(outputPath, []byte(content), 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write source file: %s", outputPath)
		return err
	}
	return err
}
