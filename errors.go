package courier

import "errors"

var (
	// Not found errors.
	ErrAccountNotFound    = errors.New("courier: quota account not found")
	ErrReportNotFound     = errors.New("courier: status report not found")
	ErrDeadLetterNotFound = errors.New("courier: dead letter entry not found")

	// Engine errors.
	ErrUnknownKind      = errors.New("courier: unknown task kind")
	ErrNoBodyRegistered = errors.New("courier: no task body registered")
	ErrAlreadyRunning   = errors.New("courier: engine already running")
)
