package contract

import (
	"fmt"

	"github.com/pkg/errors"
)

// PreconditionError reports a request that violates a requires clause.
type PreconditionError struct {
	Name string
}

func (e *PreconditionError) Error() string {
	name := e.Name
	if name == "" {
		name = "unset name"
	}
	return fmt.Sprintf("Precondition with %s failed", name)
}

// UnsatisfiableError reports ensures clauses without any solution for the
// request.
type UnsatisfiableError struct{}

func (e *UnsatisfiableError) Error() string {
	return "Cannot find solution for the given constraints"
}

// ArgumentError reports a request value that cannot be converted to the
// declared argument type.
type ArgumentError struct {
	Name string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid value for argument '%s': %v", e.Name, e.Err)
}

func (e *ArgumentError) Cause() error { return e.Err }

// IsClientError returns true when err was caused by the request rather
// than by the service.
func IsClientError(err error) bool {
	for err != nil {
		switch err.(type) {
		case *PreconditionError, *ArgumentError:
			return true
		}
		causer, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = causer.Cause()
	}
	return false
}

// IsUnsatisfiable returns true when err reports ensures without a
// solution.
func IsUnsatisfiable(err error) bool {
	_, ok := errors.Cause(err).(*UnsatisfiableError)
	return ok
}
