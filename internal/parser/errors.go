package parser

import "fmt"

// Kind classifies a parse failure
type Kind string

// Parse failure kinds
const (
	KindStructureMismatch Kind = "structure_mismatch"
	KindEmptyResponse     Kind = "empty_response"
)

// ParseError aborts a scrape run: the page does not look like the expected price list
type ParseError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse: %s", e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
