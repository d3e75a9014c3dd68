package export

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned by Engine.Run while another run is active.
var ErrRunInProgress = errors.New("an export run is already in progress")

// TableError reports a table that produced no artifact. Op names the step
// that failed: describe, select, read, write or verify.
type TableError struct {
	Table string
	Op    string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("export table %q: %s: %v", e.Table, e.Op, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}
