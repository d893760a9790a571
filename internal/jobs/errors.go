package jobs

import "errors"

var (
	// ErrAdapterRequired is returned when an executor or worker is built without a backing adapter
	ErrAdapterRequired = errors.New("adapter is required")

	// ErrJobRequired is returned when an executor is built without a job
	ErrJobRequired = errors.New("job is required")

	// ErrInvalidDescriptor is returned when a job's handler field cannot be decoded
	ErrInvalidDescriptor = errors.New("invalid handler descriptor")
)

// UnknownHandlerError reports a job whose descriptor names a handler that
// no factory was registered for, carrying the attempted name for diagnostics.
type UnknownHandlerError struct {
	Name string
	Err  error
}

func (e *UnknownHandlerError) Error() string {
	if e.Err != nil {
		return "unknown handler " + e.Name + ": " + e.Err.Error()
	}
	return "unknown handler " + e.Name
}

func (e *UnknownHandlerError) Unwrap() error {
	return e.Err
}

// NewUnknownHandlerError wraps err as a resolution failure for the named handler.
func NewUnknownHandlerError(name string, err error) error {
	return &UnknownHandlerError{Name: name, Err: err}
}
