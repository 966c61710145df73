package normalizer

import "fmt"

// Reason classifies why a row was excluded from a batch
type Reason string

// Skip reasons
const (
	ReasonMissingKey       Reason = "missing_key"
	ReasonUnparseableValue Reason = "unparseable_value"
	ReasonDuplicateKey     Reason = "duplicate_key"
)

// SkipRow excludes a single row from the batch. It never aborts a run.
type SkipRow struct {
	Reason Reason
	Symbol string
	Field  string
	Value  string
}

func (e *SkipRow) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("skip row: %s: %s=%q", e.Reason, e.Field, e.Value)
	}
	return fmt.Sprintf("skip row: %s: %s", e.Reason, e.Field)
}

// Detail describes the offending field for run reports
func (e *SkipRow) Detail() string {
	if e.Value != "" {
		return fmt.Sprintf("%s=%q", e.Field, e.Value)
	}
	return e.Field
}
