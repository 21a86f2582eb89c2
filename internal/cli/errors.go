package cli

import (
	"errors"
	"fmt"
	"strings"

	genspec "github.com/mark3labs/swagger2ts/internal/spec"
)

var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg   string
	cause error
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

func (e usageError) Unwrap() error { return e.cause }

// specUsageError turns document problems into usage errors that name where in the
// document they were found. The original error stays reachable through errors.Is.
func specUsageError(err error) error {
	var se *genspec.SpecError
	if errors.As(err, &se) {
		msg := se.Message
		if !strings.HasPrefix(msg, "spec: ") {
			msg = "spec: " + msg
		}
		if se.Location != "" {
			msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
		}
		if se.JSONPointer != "" {
			msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
		}
		return usageError{msg: msg, cause: err}
	}
	var oe *genspec.OperationError
	if errors.As(err, &oe) {
		msg := fmt.Sprintf("spec: %v", oe)
		if oe.Pointer != "" {
			msg = fmt.Sprintf("%s\nPointer: %s", msg, oe.Pointer)
		}
		if errors.Is(err, genspec.ErrMissingTags) {
			msg += "\nHint: tag the operation or use --mode lenient to skip it."
		}
		return usageError{msg: msg, cause: err}
	}
	if errors.Is(err, genspec.ErrInvalidPattern) {
		return usageError{msg: fmt.Sprintf("generate: %v", err), cause: err}
	}
	return err
}
