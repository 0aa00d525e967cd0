package llm

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrService marks failures of the external text generation service:
// transport, authentication, quota, blocked or empty responses.
var ErrService = errors.New("text generation service error")

// Generator sends a single prompt to a text generation service and returns its text.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (text string, err error)
	Name() (name string)
}

// serviceError tags cause with ErrService while keeping it matchable with errors.Is.
func serviceError(cause error, msg string) (err error) {
	if cause == nil {
		err = errors.Wrap(ErrService, msg)
		return err
	}
	err = fmt.Errorf("%w: %s: %w", ErrService, msg, cause)
	return err
}
