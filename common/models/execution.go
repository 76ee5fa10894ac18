package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ExecutionStatus is the outcome of one test run. Values outside the known
// set are stored as reported.
type ExecutionStatus string

const (
	ExecutionPassed  ExecutionStatus = "passed"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionError   ExecutionStatus = "error"
	ExecutionSkipped ExecutionStatus = "skipped"
)

// Execution is one append-only ledger entry.
// Maps to: test_executions collection
type Execution struct {
	ID         bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	TestCaseID string          `bson:"test_case_id" json:"test_case_id"`
	Hospital   string          `bson:"hospital" json:"hospital"`
	Status     ExecutionStatus `bson:"status" json:"status"`
	DurationMs int64           `bson:"duration_ms" json:"duration_ms"`

	FailureReason    string         `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	ScreenshotPath   string         `bson:"screenshot_path,omitempty" json:"screenshot_path,omitempty"`
	ExecutionContext map[string]any `bson:"execution_context,omitempty" json:"execution_context,omitempty"` // browser, viewport, ...

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`

	Extra map[string]any `bson:",inline" json:"-"`
}

var executionFields = []string{
	"test_case_id", "status", "duration_ms", "failure_reason",
	"screenshot_path", "execution_context", "timestamp",
}

func (e *Execution) Clean() {
	e.Extra = cleanExtra(e.Extra, executionFields)
}

func (e *Execution) Passed() bool {
	return e.Status == ExecutionPassed
}

// UnmarshalJSON never rejects a run over a mistyped optional field; the
// value is kept under Extra[FieldUnparsed].
func (e *Execution) UnmarshalJSON(data []byte) error {
	extra, err := decodeLenient(data, map[string]any{
		"id":                &e.ID,
		"test_case_id":      &e.TestCaseID,
		"hospital":          &e.Hospital,
		"status":            &e.Status,
		"duration_ms":       &e.DurationMs,
		"failure_reason":    &e.FailureReason,
		"screenshot_path":   &e.ScreenshotPath,
		"execution_context": &e.ExecutionContext,
		"timestamp":         &e.Timestamp,
	})
	if err != nil {
		return err
	}
	e.Extra = extra
	return nil
}

func (e Execution) MarshalJSON() ([]byte, error) {
	type plain Execution
	return marshalFlat(plain(e), e.Extra)
}
