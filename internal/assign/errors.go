package assign

import "errors"

var (
	ErrUnknownEntity    = errors.New("unknown passenger or driver")
	ErrCapacityExceeded = errors.New("driver capacity exceeded")
)
