package sh8601

import "errors"

// Bring-up failures. Each one identifies the step of New that failed; the
// underlying cause is wrapped alongside so errors.Is matches both.
var (
	ErrNoMem         = errors.New("sh8601: draw buffer allocation failed")
	ErrGPIO          = errors.New("sh8601: gpio port failure")
	ErrBusInit       = errors.New("sh8601: bus init failed")
	ErrPanelIOCreate = errors.New("sh8601: panel IO init failed")
	ErrPanelCreate   = errors.New("sh8601: panel create failed")
	ErrPanelReset    = errors.New("sh8601: panel reset failed")
	ErrPanelInit     = errors.New("sh8601: panel init failed")
	ErrDisplayOn     = errors.New("sh8601: display on failed")
)

// Steady-state failures.
var (
	ErrTransferTimeout = errors.New("sh8601: pixel transfer timed out")
	ErrFlushPending    = errors.New("sh8601: flush already pending")
	ErrInvalidRegion   = errors.New("sh8601: invalid region")
	ErrBufferSize      = errors.New("sh8601: invalid buffer size")
	ErrHalted          = errors.New("sh8601: halted")
)
