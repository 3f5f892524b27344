package openapi

import (
	"fmt"

	"github.com/Nikpro200125/orchestrator/libsl"
)

// ConversionError reports an OpenAPI document that could not be loaded or
// generated.
type ConversionError struct {
	Automaton string
	Function  string
	Err       error
}

func (e *ConversionError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("OpenAPI generation failed for %s.%s: %v", e.Automaton, e.Function, e.Err)
	}
	return fmt.Sprintf("OpenAPI generation failed: %v", e.Err)
}

func (e *ConversionError) Cause() error { return e.Err }

// IsInputError returns true when err was caused by a malformed upload
// rather than by the server.
func IsInputError(err error) bool {
	for err != nil {
		if _, ok := err.(*ConversionError); ok {
			return true
		}
		if libsl.IsParseError(err) {
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
