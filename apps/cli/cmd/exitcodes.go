package cmd

import (
	"errors"
	"net"

	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	"github.com/abdul-hamid-achik/hitlambda/packages/invoke"
)

// Exit codes for hitlambda CLI
const (
	// ExitSuccess indicates every invocation succeeded
	ExitSuccess = 0

	// ExitInvocationError indicates an invocation failed or answered with an
	// error status, or a stress threshold was not met
	ExitInvocationError = 1

	// ExitParseError indicates a malformed declaration file or declaration,
	// including a payload on a bodiless verb or none on a body verb
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError attaches an exit code to err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode picks the process exit status for err.
func exitCode(err error) int {
	var (
		ee   *exitError
		perr *parser.ParseError
		nerr net.Error
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ee):
		return ee.code
	case errors.As(err, &perr), invoke.IsInvalidDeclaration(err),
		errors.Is(err, invoke.ErrUnexpectedPayload), errors.Is(err, invoke.ErrMissingPayload):
		return ExitParseError
	case errors.As(err, &nerr):
		return ExitNetworkError
	}
	return ExitInvocationError
}
