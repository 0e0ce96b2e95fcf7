package agent

import "fmt"

// ModelError wraps a failed model call. It is the only error class a
// run aborts on, so callers can tell model outages apart from the tool
// failures the loop absorbs.
type ModelError struct {
	Round int
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed in round %d: %v", e.Round, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }
