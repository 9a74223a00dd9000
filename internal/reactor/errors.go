package reactor

import "errors"

var (
	ErrNilTask       = errors.New("reactor: task is nil")
	ErrUnknownEntity = errors.New("reactor: unknown entity")
)
