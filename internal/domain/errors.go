package domain

import "errors"

// Error taxonomy for the risk engine. Configuration and input errors are fatal
// to the operation that raised them; broker and direction errors are isolated
// per item during batch processing.
var (
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnknownSignalDirection = errors.New("unknown signal direction")
	ErrBrokerCall             = errors.New("broker call failed")
	ErrPartialExecution       = errors.New("partial execution")
)
