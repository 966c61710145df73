package query

import "fmt"

// InvalidArgumentError reports a request parameter outside its allowed range
type InvalidArgumentError struct {
	Field   string
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
