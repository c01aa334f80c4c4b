package processor

import "errors"

var (
	// ErrInvalidInstruction indicates an instruction that cannot be executed as given.
	ErrInvalidInstruction = errors.New("processor: invalid instruction")

	// ErrUnknownOp indicates an unrecognized operation code.
	ErrUnknownOp = errors.New("processor: unknown operation")
)
