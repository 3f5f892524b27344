package libsl

import (
	"fmt"
	"strings"
)

// ParseError reports a syntax or semantic problem at a source position.
type ParseError struct {
	File    string
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%s: %s", e.File, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// ParseErrors collects every problem found in a single file.
type ParseErrors []*ParseError

func (es ParseErrors) Error() string {
	lines := make([]string, 0, len(es))
	for _, e := range es {
		lines = append(lines, e.Error())
	}
	return "Failed to parse LibSL file:\n" + strings.Join(lines, "\n")
}

// IsParseError returns true when err originates from the LibSL parser.
func IsParseError(err error) bool {
	switch err.(type) {
	case *ParseError, ParseErrors:
		return true
	default:
		return false
	}
}
