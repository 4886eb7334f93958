package specdoc

import "fmt"

type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse spec document: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func NewParseError(format string, args ...any) *ParseError {
	return &ParseError{Err: fmt.Errorf(format, args...)}
}
