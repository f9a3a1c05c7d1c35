package mel

import (
	"errors"
	"fmt"
	"strings"
)

// Marshaling errors.
var ErrNoMelType = errors.New("no MEL type equivalent")
var ErrKindMismatch = errors.New("result kind mismatch")

// Evaluation error categories. Every failed command classifies into exactly
// one of these; EvalError.Unwrap exposes the matched category so callers can
// test with errors.Is.
var ErrUnknownProcedure = errors.New("unknown MEL procedure")
var ErrArgument = errors.New("wrong number of MEL arguments")
var ErrConversion = errors.New("MEL data conversion failed")
var ErrEval = errors.New("MEL execution failed")

// EvalError is the error returned when the host reports a failed command.
// It carries the command that was executed and the error diagnostics the
// host emitted while executing it, classified into one of the category
// sentinels above.
type EvalError struct {
	Cmd         string
	Diagnostics []string
	category    error
}

// NewEvalError classifies the captured diagnostics and wraps them with the
// failed command.
func NewEvalError(cmd string, diagnostics []string) *EvalError {
	return &EvalError{
		Cmd:         cmd,
		Diagnostics: diagnostics,
		category:    Classify(diagnostics),
	}
}

// Classify maps captured error diagnostics onto an error category. The
// match vocabulary is the host's own message text; first match wins.
func Classify(diagnostics []string) error {
	msg := strings.Join(diagnostics, "\n")
	switch {
	case strings.Contains(msg, "Cannot find procedure"):
		return ErrUnknownProcedure
	case strings.Contains(msg, "Wrong number of arguments"):
		return ErrArgument
	case strings.Contains(msg, "Cannot convert data"),
		strings.Contains(msg, "Cannot cast data"):
		return ErrConversion
	default:
		return ErrEval
	}
}

func (e *EvalError) Error() string {
	if len(e.Diagnostics) == 0 {
		return fmt.Sprintf("error during MEL execution of %q", e.Cmd)
	}
	return "error during MEL execution: " + strings.Join(e.Diagnostics, "\n")
}

// Unwrap returns the matched category sentinel.
func (e *EvalError) Unwrap() error {
	return e.category
}
