package services

import "errors"

// Pipeline service errors
var (
	// ErrPipelineBusy is returned when a run is requested while another is in progress
	ErrPipelineBusy = errors.New("pipeline already running")
	// ErrReadOnly is returned for trigger requests in remote source mode
	ErrReadOnly = errors.New("pipeline triggers are disabled in remote mode")
	// ErrInvalidInput covers malformed service arguments
	ErrInvalidInput = errors.New("invalid input")
)
