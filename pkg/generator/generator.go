// Package generator runs a single CV generation request from user text to downloadable files.
package generator

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nikogura/cv-generator/pkg/renderer"
	"github.com/nikogura/cv-generator/pkg/session"
	"github.com/nikogura/cv-generator/pkg/template"
	"github.com/pkg/errors"
)

// ErrEmptyInput is returned when the user supplied no details.
var ErrEmptyInput = errors.New("user input is empty")

// State is a step of the generation request lifecycle.
type State string

// Lifecycle states, in order. Aborted can follow any state before Responded.
const (
	StateReceived         State = "received"
	StateTemplateCopied   State = "template-copied"
	StateRewritten        State = "rewritten"
	StateSourceWritten    State = "source-written"
	StateCompileAttempted State = "compile-attempted"
	StateCompileSkipped   State = "compile-skipped"
	StateResponded        State = "responded"
	StateAborted          State = "aborted"
)

const previewLength = 50

// Rewriter produces the personalized document from the template and user text.
type Rewriter interface {
	Rewrite(ctx context.Context, templateText, userText string) (rewritten string, err error)
	Provider() (name string)
}

// Compiler turns the rewritten source into a PDF.
type Compiler interface {
	Available() (available bool)
	Compile(ctx context.Context, sourcePath, outputDir string) (outcome renderer.Outcome)
}

// Result describes a completed request. The source file is always present;
// the PDF only when compilation succeeded.
type Result struct {
	SessionID    string `json:"session_id"`
	TexFile      string `json:"tex_file"`
	PDFFile      string `json:"pdf_file,omitempty"`
	PDFAvailable bool   `json:"pdf_available"`
}

// Options wire a Service.
type Options struct {
	Sessions       *session.Manager
	Templates      *template.Provider
	Rewriter       Rewriter
	Compiler       Compiler
	RewriteTimeout time.Duration
	Logger         *slog.Logger
}

// Service runs generation requests. It is safe for concurrent use; each
// request works in its own session directory.
type Service struct {
	sessions       *session.Manager
	templates      *template.Provider
	rewriter       Rewriter
	compiler       Compiler
	rewriteTimeout time.Duration
	logger         *slog.Logger
}

// New creates a Service.
func New(opts Options) (svc *Service) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	svc = &Service{
		sessions:       opts.Sessions,
		templates:      opts.Templates,
		rewriter:       opts.Rewriter,
		compiler:       opts.Compiler,
		rewriteTimeout: opts.RewriteTimeout,
		logger:         logger,
	}
	return svc
}

// CompilerAvailable reports whether PDFs will be attempted.
func (s *Service) CompilerAvailable() (available bool) {
	available = s.compiler.Available()
	return available
}

// Provider names the text generation backend.
func (s *Service) Provider() (name string) {
	name = s.rewriter.Provider()
	return name
}

// Generate creates a session, rewrites the template with userText, writes the
// source and tries to compile it. Any failure before compilation removes the
// session and returns an error; compilation failures only clear PDFAvailable.
func (s *Service) Generate(ctx context.Context, userText string) (result Result, err error) {
	if strings.TrimSpace(userText) == "" {
		err = ErrEmptyInput
		return result, err
	}

	var sess session.Session
	sess, err = s.sessions.Create()
	if err != nil {
		err = errors.Wrap(err, "failed to allocate session")
		return result, err
	}

	logger := s.logger.With("session_id", sess.ID)
	logger.Info("starting CV generation", "input_preview", preview(userText))
	state := StateReceived
	completed := false

	// Runs on error returns and on panics; the panic itself keeps unwinding.
	defer func() {
		if completed {
			return
		}
		logger.Error("CV generation aborted", "state", string(state), "error", err)
		destroyErr := s.sessions.Destroy(sess.ID)
		if destroyErr != nil {
			logger.Error("failed to clean up session", "error", destroyErr)
		}
		result = Result{}
	}()

	var templateData []byte
	templateData, err = s.templates.CopyTo(sess.SourcePath())
	if err != nil {
		err = errors.Wrap(err, "template copy error")
		return result, err
	}
	state = s.transition(logger, StateTemplateCopied)

	var rewritten string
	rewritten, err = s.rewrite(ctx, string(templateData), userText)
	if err != nil {
		err = errors.Wrap(err, "AI model error")
		return result, err
	}
	state = s.transition(logger, StateRewritten)

	err = renderer.WriteSource(rewritten, sess.SourcePath())
	if err != nil {
		err = errors.Wrap(err, "file write error")
		return result, err
	}
	state = s.transition(logger, StateSourceWritten)

	result = Result{
		SessionID: sess.ID,
		TexFile:   sess.SourcePath(),
	}

	if !s.compiler.Available() {
		logger.Warn("compiler not available, skipping PDF generation")
		state = s.transition(logger, StateCompileSkipped)
	} else {
		outcome := s.compiler.Compile(ctx, sess.SourcePath(), sess.Dir)
		if outcome.Success {
			result.PDFFile = outcome.OutputPath
			result.PDFAvailable = true
		}
		state = s.transition(logger, StateCompileAttempted)
	}

	state = s.transition(logger, StateResponded)
	logger.Info("CV generation completed", "pdf_available", result.PDFAvailable, "final_state", string(state))

	completed = true
	return result, err
}

// rewrite bounds the model call with the configured timeout.
func (s *Service) rewrite(ctx context.Context, templateText, userText string) (rewritten string, err error) {
	if s.rewriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.rewriteTimeout)
		defer cancel()
	}

	s.logger.Debug("calling text generation service", "provider", s.rewriter.Provider())
	rewritten, err = s.rewriter.Rewrite(ctx, templateText, userText)
	return rewritten, err
}

func (s *Service) transition(logger *slog.Logger, next State) (state State) {
	logger.Debug("state transition", "state", string(next))
	state = next
	return state
}

// preview shortens user text for logs.
func preview(text string) (short string) {
	short = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(short) <= previewLength {
		return short
	}
	runes := []rune(short)
	short = string(runes[:previewLength]) + "..."
	return short
}
