package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UIChange describes the selector drift that triggered a repair.
type UIChange struct {
	OldSelector     string  `bson:"old_selector" json:"old_selector"`
	NewSelector     string  `bson:"new_selector" json:"new_selector"`
	Confidence      float64 `bson:"confidence" json:"confidence"` // [0,1]
	DetectionMethod string  `bson:"detection_method,omitempty" json:"detection_method,omitempty"`
}

// Fix is the code change applied by a repair.
type Fix struct {
	File    string `bson:"file" json:"file"`
	Line    int    `bson:"line" json:"line"`
	OldCode string `bson:"old_code,omitempty" json:"old_code,omitempty"`
	NewCode string `bson:"new_code,omitempty" json:"new_code,omitempty"`
	Change  string `bson:"change,omitempty" json:"change,omitempty"`
}

// SelfHealDecision is a proposed selector repair. It starts pending and may
// be approved once; there is no way back to pending.
// Maps to: self_heal_decisions collection
type SelfHealDecision struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TestID   string        `bson:"test_id" json:"test_id"`
	Hospital string        `bson:"hospital" json:"hospital"`

	FailureReason    string   `bson:"failure_reason" json:"failure_reason"`
	UIChangeDetected UIChange `bson:"ui_change_detected" json:"ui_change_detected"`
	FixApplied       Fix      `bson:"fix_applied" json:"fix_applied"`

	EngineerApproved bool       `bson:"engineer_approved" json:"engineer_approved"`
	ApprovedAt       *time.Time `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	EngineerNotes    string     `bson:"engineer_notes,omitempty" json:"engineer_notes,omitempty"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`

	// Relevance, populated only by similarity lookups
	Score float64 `bson:"score,omitempty" json:"score,omitempty"`

	Extra map[string]any `bson:",inline" json:"-"`
}

var selfHealFields = []string{
	"test_id", "failure_reason", "ui_change_detected", "fix_applied",
	"engineer_approved", "approved_at", "engineer_notes", "timestamp", "score",
}

func (d *SelfHealDecision) Clean() {
	d.Extra = cleanExtra(d.Extra, selfHealFields)
}

// IsPending checks if the decision still awaits engineer approval
func (d *SelfHealDecision) IsPending() bool {
	return !d.EngineerApproved
}

func (d *SelfHealDecision) UnmarshalJSON(data []byte) error {
	extra, err := decodeLenient(data, map[string]any{
		"id":                 &d.ID,
		"test_id":            &d.TestID,
		"hospital":           &d.Hospital,
		"failure_reason":     &d.FailureReason,
		"ui_change_detected": &d.UIChangeDetected,
		"fix_applied":        &d.FixApplied,
		"engineer_approved":  &d.EngineerApproved,
		"approved_at":        &d.ApprovedAt,
		"engineer_notes":     &d.EngineerNotes,
		"timestamp":          &d.Timestamp,
		"score":              &d.Score,
	})
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

func (d SelfHealDecision) MarshalJSON() ([]byte, error) {
	type plain SelfHealDecision
	return marshalFlat(plain(d), d.Extra)
}
