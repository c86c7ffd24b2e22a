package format

import "fmt"

// ParseError reports a semantic failure of the sparse wire format: a
// bad magic, an unsupported version, wrong structure sizes, an unknown
// chunk type, or a checksum mismatch. The message identifies the field
// and the offending value.
type ParseError struct {
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return e.Message
}

// Parse creates a ParseError with a formatted message.
func Parse(msg string, args ...interface{}) error {
	return &ParseError{Message: fmt.Sprintf(msg, args...)}
}
