// Package generate sends a prompt to a text-generation service and returns the
// answer text. Each call is a single attempt.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTransport means the service could not be reached.
	ErrTransport = errors.New("generation transport failure")
	// ErrStatus means the service answered with a non-success status.
	ErrStatus = errors.New("generation service returned an error status")
	// ErrFormat means the response did not contain answer text where expected.
	ErrFormat = errors.New("unexpected generation response format")
)

// StatusError carries the HTTP status of a failed call. It matches ErrStatus.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("generation service returned status %d", e.Code)
	}
	return fmt.Sprintf("generation service returned status %d: %s", e.Code, e.Body)
}

// Unwrap lets errors.Is(err, ErrStatus) match.
func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Generator produces answer text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Placeholder converts a generation error into text shown to the user in place of
// an answer.
func Placeholder(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return fmt.Sprintf("The answer service returned an error (status %d). Please try again later.", se.Code)
	case errors.Is(err, ErrStatus):
		return "The answer service returned an error. Please try again later."
	case errors.Is(err, ErrTransport):
		return "The answer service could not be reached. Please check the connection and try again."
	case errors.Is(err, ErrFormat):
		return "The answer service returned a response that could not be read. Please try again."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled before an answer was generated."
	}
	return "An unexpected error occurred while generating the answer."
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// WithTimeout bounds every call of g by d. A non-positive d returns g unchanged.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return Func(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return g.Generate(ctx, prompt)
	})
}
