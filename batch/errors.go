package batch

import "errors"

// ErrAborted is wrapped into the abort cause when the failure threshold
// cancels a batch.
var ErrAborted = errors.New("batch aborted on failure threshold")

// terminalError marks a hard failure that must not be retried even with
// budget remaining.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string {
	return "terminal: " + e.err.Error()
}

func (e *terminalError) Unwrap() error {
	return e.err
}

// NoRetry wraps err so the runner records it as a hard failure without
// consuming retry budget. Use it for failure kinds known to be
// deterministic, where re-execution cannot help.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err was wrapped with NoRetry.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}
