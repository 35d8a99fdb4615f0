package device

import (
	"errors"
	"fmt"
)

var (
	// ErrUnusable is found (via errors.Is) in errors that mean the
	// connection itself is broken, not just one command. Callers should
	// stop issuing commands once they see it.
	ErrUnusable = errors.New("instrument connection unusable")
)

// CommandError is a failure the instrument reported for a single command.
// The connection stays usable afterwards.
type CommandError struct {
	Cmd string
	Msg string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("instrument rejected %q: %s", e.Cmd, e.Msg)
}
